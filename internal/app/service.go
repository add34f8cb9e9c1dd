package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"quorum/api/internal/docstore"
	"quorum/api/internal/qa"
	"quorum/api/internal/search"
)

const (
	maxTitleLength   = 300
	maxContentLength = 10000
)

// Service exposes the question-and-answer operations behind the HTTP
// surface. It fronts the optimistic stores: mutations go through the
// stores so callers observe the same local state the stores maintain,
// rollbacks included.
type Service struct {
	session   *qa.SessionStore
	questions *qa.QuestionStore
	answers   *qa.AnswerStore
	search    *search.Service
	docs      docstore.Store
}

func NewService(session *qa.SessionStore, questions *qa.QuestionStore, answers *qa.AnswerStore, searcher *search.Service, docs docstore.Store) *Service {
	return &Service{
		session:   session,
		questions: questions,
		answers:   answers,
		search:    searcher,
		docs:      docs,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.docs.Ping(ctx)
}

// SessionInfo describes the identity currently held by this process.
func (s *Service) SessionInfo() map[string]any {
	return map[string]any{
		"authenticated": s.session.IsLoggedIn(),
		"userId":        s.session.UserID(),
		"username":      s.session.Username(),
		"authReady":     s.session.IsAuthReady(),
	}
}

func (s *Service) SignUp(ctx context.Context, email, password, username string) (map[string]any, error) {
	if err := s.session.SignUp(ctx, email, password, username); err != nil {
		return nil, mapAuthError(err)
	}
	return s.SessionInfo(), nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (map[string]any, error) {
	if err := s.session.SignIn(ctx, email, password); err != nil {
		return nil, mapAuthError(err)
	}
	return s.SessionInfo(), nil
}

func (s *Service) SignOut(ctx context.Context) (map[string]any, error) {
	if err := s.session.SignOut(ctx); err != nil {
		return nil, fmt.Errorf("sign out: %w", err)
	}
	return map[string]any{"ok": true}, nil
}

// Feed refreshes the question feed from remote and returns it along
// with the current user's vote on each question.
func (s *Service) Feed(ctx context.Context) (map[string]any, error) {
	if err := s.questions.Fetch(ctx); err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	items := s.questions.All()
	return map[string]any{
		"questions": items,
		"userVotes": s.userVotes(items, s.questions.UserVote),
	}, nil
}

// AskQuestion posts a new question optimistically and reports the
// confirmed item. The question is indexed for search once the remote
// accepts it.
func (s *Service) AskQuestion(ctx context.Context, title, content string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title and content are required", nil)
	}
	if len(title) > maxTitleLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is too long", nil)
	}
	if len(content) > maxContentLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is too long", nil)
	}

	if err := s.questions.Post(ctx, title, content); err != nil {
		return nil, err
	}

	// Post confirmed: the new question sits at the front of the feed
	// under its assigned id.
	items := s.questions.All()
	if len(items) == 0 {
		return nil, fmt.Errorf("question missing after post")
	}
	question := items[0]

	s.search.IndexQuestion(search.QuestionRecord{
		ID:             question.ID,
		Title:          question.Title,
		Content:        question.Content,
		AuthorUsername: question.AuthorUsername,
		VoteCount:      question.VoteCount,
	})

	return map[string]any{"question": question}, nil
}

// QuestionDetail loads one question and its answers, scoping the
// answer store to the question.
func (s *Service) QuestionDetail(ctx context.Context, questionID string) (map[string]any, error) {
	question, err := s.questions.Load(ctx, questionID)
	if err != nil {
		return nil, err
	}

	if err := s.answers.Fetch(ctx, questionID); err != nil {
		return nil, fmt.Errorf("fetch answers: %w", err)
	}
	answers := s.answers.All()

	return map[string]any{
		"question":     question,
		"questionVote": string(s.questions.UserVote(questionID)),
		"answers":      answers,
		"answerVotes":  s.userVotes(answers, s.answers.UserVote),
	}, nil
}

// PostAnswer adds an answer to a question, loading the question's
// answers first if the store is scoped elsewhere.
func (s *Service) PostAnswer(ctx context.Context, questionID, content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if len(content) > maxContentLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is too long", nil)
	}

	if s.answers.QuestionID() != questionID {
		if err := s.answers.Fetch(ctx, questionID); err != nil {
			return nil, fmt.Errorf("fetch answers: %w", err)
		}
	}
	if err := s.answers.Post(ctx, content); err != nil {
		return nil, err
	}

	answers := s.answers.All()
	if len(answers) == 0 {
		return nil, fmt.Errorf("answer missing after post")
	}
	return map[string]any{"answer": answers[len(answers)-1]}, nil
}

// VoteQuestion records a vote and returns the updated question.
func (s *Service) VoteQuestion(ctx context.Context, questionID, voteType string) (map[string]any, error) {
	vote, err := parseVote(voteType)
	if err != nil {
		return nil, err
	}
	if err := s.questions.Vote(ctx, questionID, vote); err != nil {
		return nil, err
	}
	question, ok := s.questions.Get(questionID)
	if !ok {
		return nil, qa.ErrItemNotFound
	}
	return map[string]any{
		"question": question,
		"userVote": string(s.questions.UserVote(questionID)),
	}, nil
}

// VoteAnswer records a vote on an answer in the loaded question.
func (s *Service) VoteAnswer(ctx context.Context, answerID, voteType string) (map[string]any, error) {
	vote, err := parseVote(voteType)
	if err != nil {
		return nil, err
	}
	if err := s.answers.Vote(ctx, answerID, vote); err != nil {
		return nil, err
	}
	for _, answer := range s.answers.All() {
		if answer.ID == answerID {
			return map[string]any{
				"answer":   answer,
				"userVote": string(s.answers.UserVote(answerID)),
			}, nil
		}
	}
	return nil, qa.ErrItemNotFound
}

// Search runs a full-text query over questions.
func (s *Service) Search(q string, limit, offset int) (search.Response, error) {
	return s.search.Search(search.Query{Text: q, Limit: limit, Offset: offset})
}

// Stats reports collection sizes for the landing page.
func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	questions, err := s.docs.CountDocuments(ctx, qa.QuestionsCollection)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	answers, err := s.docs.CountDocuments(ctx, qa.AnswersCollection)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	users, err := s.docs.CountDocuments(ctx, qa.UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	return map[string]any{
		"questions": questions,
		"answers":   answers,
		"users":     users,
	}, nil
}

func (s *Service) userVotes(items []qa.Item, lookup func(string) qa.Vote) map[string]string {
	votes := make(map[string]string, len(items))
	if !s.session.IsLoggedIn() {
		return votes
	}
	for _, item := range items {
		if vote := lookup(item.ID); vote != qa.VoteNone {
			votes[item.ID] = string(vote)
		}
	}
	return votes
}

func parseVote(voteType string) (qa.Vote, error) {
	switch qa.Vote(voteType) {
	case qa.VoteUp, qa.VoteDown:
		return qa.Vote(voteType), nil
	default:
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "voteType must be 'upvote' or 'downvote'", nil)
	}
}

func mapAuthError(err error) error {
	msg := err.Error()
	switch {
	case msg == "email already registered":
		return domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
	case msg == "invalid email or password":
		return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	case strings.Contains(msg, "required") || strings.Contains(msg, "password must be"):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", msg, nil)
	default:
		return err
	}
}

package qa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quorum/api/internal/util"
)

// AnswerStore holds the answers of one question, oldest first, and applies
// optimistic mutations against them. The scope is the question id the
// answers were loaded for; it is set by Fetch and reset by Clear.
type AnswerStore struct {
	session *SessionStore
	remote  Remote

	mu         sync.Mutex
	answers    []Item
	questionID string
	loading    bool
	lastErr    string
	fetchToken uint64
}

// NewAnswerStore creates the answer store with no scope loaded.
func NewAnswerStore(session *SessionStore, remote Remote) *AnswerStore {
	return &AnswerStore{
		session: session,
		remote:  remote,
	}
}

// Fetch loads all answers for a question, ascending by creation time. A
// fetch for the scope already loaded (or loading) short-circuits without a
// remote call, so re-rendering a question view does not refetch. Stale
// results are discarded by the fetch token, as in QuestionStore.
func (s *AnswerStore) Fetch(ctx context.Context, questionID string) error {
	s.mu.Lock()
	if s.questionID == questionID && questionID != "" {
		s.mu.Unlock()
		return nil
	}
	s.fetchToken++
	token := s.fetchToken
	s.questionID = questionID
	s.answers = []Item{}
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	items, err := s.remote.List(ctx, AnswersCollection, ListQuery{QuestionID: questionID})

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.fetchToken {
		return nil
	}
	s.loading = false
	if err != nil {
		s.answers = []Item{}
		s.lastErr = "failed to fetch answers"
		return fmt.Errorf("fetch answers for %s: %w", questionID, err)
	}
	s.answers = items
	return nil
}

// Post appends a provisional answer to the loaded question, then issues the
// remote create, rewriting the id on success and removing the provisional
// answer on failure.
func (s *AnswerStore) Post(ctx context.Context, content string) error {
	uid := s.session.UserID()
	username := s.session.Username()

	s.mu.Lock()
	if s.questionID == "" {
		s.lastErr = "no active question to post an answer to"
		s.mu.Unlock()
		return ErrNoActiveQuestion
	}
	if uid == "" || username == "" {
		s.lastErr = "you must be logged in to post an answer"
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.loading = true
	s.lastErr = ""

	temp := Item{
		ID:             util.TempID(),
		Content:        content,
		QuestionID:     s.questionID,
		AuthorUID:      uid,
		AuthorUsername: username,
		CreatedAt:      time.Now(),
		UpvotedBy:      []string{},
		DownvotedBy:    []string{},
		IsOptimistic:   true,
	}
	s.answers = append(s.answers, temp)
	s.mu.Unlock()

	id, err := s.remote.Create(ctx, AnswersCollection, temp)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.answers = removeByID(s.answers, temp.ID)
		s.lastErr = "failed to post answer"
		return fmt.Errorf("post answer: %w", err)
	}
	if idx := indexOf(s.answers, temp.ID); idx >= 0 {
		s.answers[idx].ID = id
		s.answers[idx].IsOptimistic = false
	}
	return nil
}

// Vote mirrors QuestionStore.Vote for answers: optimistic reconcile with a
// snapshot, remote transaction, exact restore on failure.
func (s *AnswerStore) Vote(ctx context.Context, answerID string, voteType Vote) error {
	uid := s.session.UserID()

	s.mu.Lock()
	if uid == "" {
		s.lastErr = "you must be logged in to vote"
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	idx := indexOf(s.answers, answerID)
	if idx < 0 {
		s.lastErr = "answer not found"
		s.mu.Unlock()
		return ErrItemNotFound
	}

	item := &s.answers[idx]
	prevUp := append([]string(nil), item.UpvotedBy...)
	prevDown := append([]string(nil), item.DownvotedBy...)
	prevCount := item.VoteCount
	item.UpvotedBy, item.DownvotedBy, item.VoteCount = Reconcile(item.UpvotedBy, item.DownvotedBy, uid, voteType)
	s.mu.Unlock()

	err := s.remote.Vote(ctx, AnswersCollection, answerID, uid, voteType)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if i := indexOf(s.answers, answerID); i >= 0 {
			s.answers[i].UpvotedBy = prevUp
			s.answers[i].DownvotedBy = prevDown
			s.answers[i].VoteCount = prevCount
		}
		s.lastErr = "vote failed"
		return fmt.Errorf("vote on answer %s: %w", answerID, err)
	}
	return nil
}

// UserVote returns the signed-in user's vote on an answer. Pure lookup.
func (s *AnswerStore) UserVote(answerID string) Vote {
	uid := s.session.UserID()
	if uid == "" {
		return VoteNone
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.answers, answerID)
	if idx < 0 {
		return VoteNone
	}
	return VoteOf(s.answers[idx].UpvotedBy, s.answers[idx].DownvotedBy, uid)
}

// All returns a copy of the loaded answers in order.
func (s *AnswerStore) All() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.answers)
}

// QuestionID returns the loaded scope, or "".
func (s *AnswerStore) QuestionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionID
}

// Clear resets the collection and its scope, invalidating any in-flight
// fetch. Called when navigating away from a question's answer thread.
func (s *AnswerStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchToken++
	s.answers = nil
	s.questionID = ""
	s.loading = false
	s.lastErr = ""
}

// IsLoading reports whether a fetch or post is in flight.
func (s *AnswerStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded error message, or "".
func (s *AnswerStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

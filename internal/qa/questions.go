package qa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quorum/api/internal/util"
)

// QuestionStore holds the global question feed and applies optimistic
// mutations against it. All state is touched synchronously between remote
// calls; the mutex is never held across one, so overlapping operations
// interleave only at those suspension points.
type QuestionStore struct {
	session  *SessionStore
	remote   Remote
	pageSize int

	mu         sync.Mutex
	questions  []Item
	loading    bool
	lastErr    string
	fetchToken uint64
}

// NewQuestionStore creates the feed store. pageSize bounds a fetch.
func NewQuestionStore(session *SessionStore, remote Remote, pageSize int) *QuestionStore {
	return &QuestionStore{
		session:  session,
		remote:   remote,
		pageSize: pageSize,
	}
}

// Fetch replaces the feed with the most recent questions, newest first.
// Each fetch carries a monotonic token; a result whose token has been
// superseded by a newer Fetch or Clear is discarded, so a stale in-flight
// request can never overwrite fresher state.
func (s *QuestionStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.fetchToken++
	token := s.fetchToken
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	items, err := s.remote.List(ctx, QuestionsCollection, ListQuery{
		Limit:      s.pageSize,
		Descending: true,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.fetchToken {
		return nil
	}
	s.loading = false
	if err != nil {
		s.questions = []Item{}
		s.lastErr = "failed to fetch questions"
		return fmt.Errorf("fetch questions: %w", err)
	}
	s.questions = items
	return nil
}

// Post inserts a provisional question at the front of the feed, then issues
// the remote create. Success rewrites the provisional id to the assigned
// one; failure removes the provisional item entirely, so a failed write is
// invisible once rolled back.
func (s *QuestionStore) Post(ctx context.Context, title, content string) error {
	uid := s.session.UserID()
	username := s.session.Username()

	s.mu.Lock()
	if uid == "" || username == "" {
		s.lastErr = "you must be logged in to post a question"
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.loading = true
	s.lastErr = ""

	temp := Item{
		ID:             util.TempID(),
		Title:          title,
		Content:        content,
		AuthorUID:      uid,
		AuthorUsername: username,
		CreatedAt:      time.Now(),
		UpvotedBy:      []string{},
		DownvotedBy:    []string{},
		IsOptimistic:   true,
	}
	s.questions = append([]Item{temp}, s.questions...)
	s.mu.Unlock()

	id, err := s.remote.Create(ctx, QuestionsCollection, temp)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.questions = removeByID(s.questions, temp.ID)
		s.lastErr = "failed to post question"
		return fmt.Errorf("post question: %w", err)
	}
	if idx := indexOf(s.questions, temp.ID); idx >= 0 {
		s.questions[idx].ID = id
		s.questions[idx].IsOptimistic = false
	}
	return nil
}

// Vote applies the reconciled vote locally, snapshots the prior sets, then
// issues the remote transaction. Remote success needs no further mutation;
// remote failure restores the exact pre-call snapshot before the error is
// recorded.
func (s *QuestionStore) Vote(ctx context.Context, questionID string, voteType Vote) error {
	uid := s.session.UserID()

	s.mu.Lock()
	if uid == "" {
		s.lastErr = "you must be logged in to vote"
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	idx := indexOf(s.questions, questionID)
	if idx < 0 {
		s.lastErr = "question not found"
		s.mu.Unlock()
		return ErrItemNotFound
	}

	item := &s.questions[idx]
	prevUp := append([]string(nil), item.UpvotedBy...)
	prevDown := append([]string(nil), item.DownvotedBy...)
	prevCount := item.VoteCount
	item.UpvotedBy, item.DownvotedBy, item.VoteCount = Reconcile(item.UpvotedBy, item.DownvotedBy, uid, voteType)
	s.mu.Unlock()

	err := s.remote.Vote(ctx, QuestionsCollection, questionID, uid, voteType)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if i := indexOf(s.questions, questionID); i >= 0 {
			s.questions[i].UpvotedBy = prevUp
			s.questions[i].DownvotedBy = prevDown
			s.questions[i].VoteCount = prevCount
		}
		s.lastErr = "vote failed"
		return fmt.Errorf("vote on question %s: %w", questionID, err)
	}
	return nil
}

// UserVote returns the signed-in user's vote on a question. Pure lookup.
func (s *QuestionStore) UserVote(questionID string) Vote {
	uid := s.session.UserID()
	if uid == "" {
		return VoteNone
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.questions, questionID)
	if idx < 0 {
		return VoteNone
	}
	return VoteOf(s.questions[idx].UpvotedBy, s.questions[idx].DownvotedBy, uid)
}

// All returns a copy of the feed in its current order.
func (s *QuestionStore) All() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.questions)
}

// Load returns one question by id, reading it from remote when it is not
// in the local feed. A remotely loaded question joins the collection so
// later votes can find it; a subsequent Fetch replaces it along with the
// rest of the feed.
func (s *QuestionStore) Load(ctx context.Context, questionID string) (Item, error) {
	if item, ok := s.Get(questionID); ok {
		return item, nil
	}

	item, err := s.remote.Get(ctx, QuestionsCollection, questionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			s.lastErr = "question not found"
			return Item{}, ErrItemNotFound
		}
		s.lastErr = "failed to fetch question"
		return Item{}, fmt.Errorf("load question %s: %w", questionID, err)
	}
	if idx := indexOf(s.questions, questionID); idx >= 0 {
		return copyItem(s.questions[idx]), nil
	}
	s.questions = append(s.questions, item)
	return copyItem(item), nil
}

// Get returns one question by id.
func (s *QuestionStore) Get(questionID string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.questions, questionID)
	if idx < 0 {
		return Item{}, false
	}
	return copyItem(s.questions[idx]), true
}

// Clear resets the feed. Any in-flight fetch is invalidated.
func (s *QuestionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchToken++
	s.questions = nil
	s.loading = false
	s.lastErr = ""
}

// IsLoading reports whether a fetch or post is in flight.
func (s *QuestionStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded error message, or "".
func (s *QuestionStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func indexOf(items []Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func removeByID(items []Item, id string) []Item {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

func copyItem(item Item) Item {
	item.UpvotedBy = append([]string(nil), item.UpvotedBy...)
	item.DownvotedBy = append([]string(nil), item.DownvotedBy...)
	return item
}

func copyItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = copyItem(item)
	}
	return out
}

// Package qa holds the client-side state layer for questions and answers:
// collections that mutate optimistically on user action, reconcile with the
// document store's eventual response, and roll back cleanly on failure.
package qa

import "time"

// Collection names in the document store.
const (
	QuestionsCollection = "questions"
	AnswersCollection   = "answers"
	UsersCollection     = "users"
)

// Item is a votable question or answer. Title is set only for questions,
// QuestionID only for answers. VoteCount is derived from the two membership
// sets and is never updated independently of them.
type Item struct {
	ID             string    `json:"id"`
	Title          string    `json:"title,omitempty"`
	Content        string    `json:"content"`
	QuestionID     string    `json:"questionId,omitempty"`
	AuthorUID      string    `json:"authorUid"`
	AuthorUsername string    `json:"authorUsername"`
	CreatedAt      time.Time `json:"createdAt"`
	VoteCount      int       `json:"voteCount"`
	UpvotedBy      []string  `json:"upvotedBy"`
	DownvotedBy    []string  `json:"downvotedBy"`

	// IsOptimistic is true from local creation until the document store
	// confirms the write and assigns the permanent id.
	IsOptimistic bool `json:"isOptimistic"`
}

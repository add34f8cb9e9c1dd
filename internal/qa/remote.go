package qa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quorum/api/internal/docstore"
)

// ListQuery selects which items a collection fetch wants. QuestionID is the
// answer scope; the global question feed leaves it empty and sets a limit.
type ListQuery struct {
	QuestionID string
	Limit      int
	Descending bool
}

// Remote is the document-store-facing side of the collection stores. The
// stores call it at their suspension points; everything before and after is
// synchronous local state.
type Remote interface {
	List(ctx context.Context, collection string, q ListQuery) ([]Item, error)
	Get(ctx context.Context, collection, id string) (Item, error)
	Create(ctx context.Context, collection string, item Item) (string, error)
	Vote(ctx context.Context, collection, itemID, userID string, voteType Vote) error
}

// DocRemote implements Remote against a document store. The vote write is a
// single-document transaction that recomputes the user's current vote from
// the freshly read sets, so a stale client view can never produce a wrong
// transition under concurrent voters.
type DocRemote struct {
	docs docstore.Store
}

func NewDocRemote(docs docstore.Store) *DocRemote {
	return &DocRemote{docs: docs}
}

func (r *DocRemote) List(ctx context.Context, collection string, q ListQuery) ([]Item, error) {
	query := docstore.Query{
		Collection: collection,
		Descending: q.Descending,
		Limit:      q.Limit,
	}
	if q.QuestionID != "" {
		query.FilterField = "questionId"
		query.FilterValue = q.QuestionID
	}

	docs, err := r.docs.QueryDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, itemFromFields(doc.ID, doc.Fields))
	}
	return items, nil
}

// Get reads one item by id. Missing documents map to ErrItemNotFound.
func (r *DocRemote) Get(ctx context.Context, collection, id string) (Item, error) {
	fields, err := r.docs.GetDocument(ctx, collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return itemFromFields(id, fields), nil
}

// Create writes the item's fields and returns the server-assigned id. The
// provisional local id and optimistic flag never leave the client; the
// creation timestamp is assigned here, authoritatively.
func (r *DocRemote) Create(ctx context.Context, collection string, item Item) (string, error) {
	fields := map[string]any{
		"content":        item.Content,
		"authorUid":      item.AuthorUID,
		"authorUsername": item.AuthorUsername,
		"createdAt":      time.Now().UTC().Format(time.RFC3339Nano),
		"voteCount":      0,
		"upvotedBy":      []string{},
		"downvotedBy":    []string{},
	}
	if item.Title != "" {
		fields["title"] = item.Title
	}
	if item.QuestionID != "" {
		fields["questionId"] = item.QuestionID
	}

	id, err := r.docs.CreateDocument(ctx, collection, fields)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return id, nil
}

func (r *DocRemote) Vote(ctx context.Context, collection, itemID, userID string, voteType Vote) error {
	err := r.docs.RunTransaction(ctx, collection, itemID, func(fields map[string]any) (map[string]any, error) {
		up, down, count := Reconcile(
			docstore.StringSlice(fields, "upvotedBy"),
			docstore.StringSlice(fields, "downvotedBy"),
			userID,
			voteType,
		)
		fields["upvotedBy"] = up
		fields["downvotedBy"] = down
		fields["voteCount"] = count
		return fields, nil
	})
	if err != nil {
		return fmt.Errorf("vote on %s/%s: %w", collection, itemID, err)
	}
	return nil
}

func itemFromFields(id string, fields map[string]any) Item {
	up := docstore.StringSlice(fields, "upvotedBy")
	if up == nil {
		up = []string{}
	}
	down := docstore.StringSlice(fields, "downvotedBy")
	if down == nil {
		down = []string{}
	}
	return Item{
		ID:             id,
		Title:          docstore.String(fields, "title"),
		Content:        docstore.String(fields, "content"),
		QuestionID:     docstore.String(fields, "questionId"),
		AuthorUID:      docstore.String(fields, "authorUid"),
		AuthorUsername: docstore.String(fields, "authorUsername"),
		CreatedAt:      docstore.Time(fields, "createdAt"),
		VoteCount:      docstore.Int(fields, "voteCount"),
		UpvotedBy:      up,
		DownvotedBy:    down,
	}
}

package search

import (
	"context"
	"log"
	"time"

	"quorum/api/internal/docstore"
)

// Service fronts the configured search backends. Queries go to
// Meilisearch when it is healthy and fall back to the document-store
// scan otherwise. Indexing is fire-and-forget: a failed index write is
// logged, never surfaced to the caller.
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService wires the primary and fallback backends. meili may be nil
// when no Meilisearch instance is configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search runs the query against the best available backend.
func (s *Service) Search(q Query) (Response, error) {
	backend := s.backend()
	results, total, err := backend.Search(q)
	if err != nil && backend != s.fallback {
		log.Printf("search: primary backend failed, falling back: %v", err)
		results, total, err = s.fallback.Search(q)
	}
	if err != nil {
		return Response{}, err
	}
	if results == nil {
		results = []Result{}
	}
	return Response{Results: results, Total: total, Query: q.Text}, nil
}

func (s *Service) backend() Searcher {
	if s.meili != nil && s.meili.Healthy() {
		return s.meili
	}
	return s.fallback
}

// IndexQuestion pushes a question into the index without blocking the
// caller. No-op when Meilisearch is not configured.
func (s *Service) IndexQuestion(q QuestionRecord) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexQuestion(q); err != nil {
			log.Printf("search: index question %s: %v", q.ID, err)
		}
	}()
}

// Backfill re-indexes every stored question in the background. Run once
// at startup so the index catches up on writes made while Meilisearch
// was down or not yet configured.
func (s *Service) Backfill(ctx context.Context, docs docstore.Store, collection string) {
	if s.meili == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		stored, err := docs.QueryDocuments(ctx, docstore.Query{Collection: collection})
		if err != nil {
			log.Printf("search: backfill query: %v", err)
			return
		}
		records := make([]QuestionRecord, 0, len(stored))
		for _, doc := range stored {
			records = append(records, QuestionRecord{
				ID:             doc.ID,
				Title:          docstore.String(doc.Fields, "title"),
				Content:        docstore.String(doc.Fields, "content"),
				AuthorUsername: docstore.String(doc.Fields, "authorUsername"),
				VoteCount:      docstore.Int(doc.Fields, "voteCount"),
			})
		}
		if err := s.meili.IndexQuestions(records); err != nil {
			log.Printf("search: backfill %d questions: %v", len(records), err)
			return
		}
		log.Printf("search: backfilled %d questions", len(records))
	}()
}

// Close shuts down background workers.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

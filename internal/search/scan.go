package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quorum/api/internal/docstore"
)

const scanLimit = 500

// Scan is a fallback Searcher that walks the question collection and
// matches on substrings. It needs no external search engine, at the
// cost of scanning up to scanLimit recent questions per query.
type Scan struct {
	docs       docstore.Store
	collection string
}

// NewScan builds a scan-based searcher over the given collection.
func NewScan(docs docstore.Store, collection string) *Scan {
	return &Scan{docs: docs, collection: collection}
}

// Healthy always reports true; the scan searcher has no remote dependency
// beyond the document store itself.
func (s *Scan) Healthy() bool { return true }

// Search matches the query text case-insensitively against question
// titles and content, newest first.
func (s *Scan) Search(q Query) ([]Result, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs, err := s.docs.QueryDocuments(ctx, docstore.Query{
		Collection: s.collection,
		Descending: true,
		Limit:      scanLimit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan search: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(q.Text))

	var matches []Result
	for _, doc := range docs {
		title := docstore.String(doc.Fields, "title")
		content := docstore.String(doc.Fields, "content")
		if needle != "" &&
			!strings.Contains(strings.ToLower(title), needle) &&
			!strings.Contains(strings.ToLower(content), needle) {
			continue
		}
		matches = append(matches, Result{
			ID:             doc.ID,
			Title:          title,
			Snippet:        snippet(content, needle),
			AuthorUsername: docstore.String(doc.Fields, "authorUsername"),
			VoteCount:      docstore.Int(doc.Fields, "voteCount"),
		})
	}

	total := len(matches)
	matches = page(matches, q.Offset, q.Limit)
	return matches, total, nil
}

// snippet returns a short excerpt of content centered on the first match.
func snippet(content, needle string) string {
	const window = 160

	if len(content) <= window {
		return content
	}
	at := 0
	if needle != "" {
		if i := strings.Index(strings.ToLower(content), needle); i >= 0 {
			at = i
		}
	}
	start := at - window/4
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(content) {
		end = len(content)
		start = end - window
	}
	out := content[start:end]
	if start > 0 {
		out = "…" + out
	}
	if end < len(content) {
		out = out + "…"
	}
	return out
}

func page(results []Result, offset, limit int) []Result {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Package docstore provides the remote document database the client state
// layer synchronizes against. Documents are schemaless field maps grouped
// into named collections and ordered by creation time.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document id does not exist in the
	// requested collection.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned by RunTransaction when the underlying
	// optimistic transaction kept conflicting and retries were exhausted.
	ErrConflict = errors.New("transaction conflict: retries exhausted")
)

// Document is a single stored document with its assigned id.
type Document struct {
	ID     string
	Fields map[string]any
}

// Query describes an ordered read over one collection. Results are ordered
// by creation time, ascending unless Descending is set. FilterField, when
// non-empty, restricts results to documents whose field equals FilterValue.
type Query struct {
	Collection  string
	FilterField string
	FilterValue string
	Descending  bool
	Limit       int
}

// UpdateFunc receives the current fields of a document inside a transaction
// and returns the replacement fields. Returning an error aborts the
// transaction without writing.
type UpdateFunc func(fields map[string]any) (map[string]any, error)

// Store is the document database contract. Both backends satisfy it.
type Store interface {
	// CreateDocument stores fields under a server-assigned id and returns it.
	CreateDocument(ctx context.Context, collection string, fields map[string]any) (string, error)

	// SetDocument stores fields under a caller-chosen id (used for the
	// users collection, which is keyed by uid).
	SetDocument(ctx context.Context, collection, id string, fields map[string]any) error

	// GetDocument returns the fields of one document, or ErrNotFound.
	GetDocument(ctx context.Context, collection, id string) (map[string]any, error)

	// QueryDocuments returns documents matching q in creation-time order.
	QueryDocuments(ctx context.Context, q Query) ([]Document, error)

	// RunTransaction performs an atomic read-modify-write of a single
	// document, retrying automatically on conflict with concurrent writers.
	// The update function may run more than once.
	RunTransaction(ctx context.Context, collection, id string, update UpdateFunc) error

	// CountDocuments returns the number of documents in a collection.
	CountDocuments(ctx context.Context, collection string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

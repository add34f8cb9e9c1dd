package qa

import "errors"

var (
	// ErrNotAuthenticated is returned by mutations that require a signed-in
	// identity. It is raised locally, before any remote call.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrItemNotFound is returned when an item id is not in the local
	// collection. Also raised locally.
	ErrItemNotFound = errors.New("item not found")

	// ErrNoActiveQuestion is returned when posting an answer with no
	// question scope loaded.
	ErrNoActiveQuestion = errors.New("no active question")
)

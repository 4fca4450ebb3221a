package searchcache

import (
	"context"
)

// Repository defines the interface for the search result cache store (Redis)
type Repository interface {
	// Get returns the entry for a keyword, or errors.ErrNotFound
	Get(ctx context.Context, keyword string) (*Entry, error)

	// Save creates or replaces the entry for a keyword
	Save(ctx context.Context, entry *Entry) error

	// Delete removes entries for the given keywords. Deletion is atomic per
	// entry: a concurrent read sees either the full entry or a miss.
	Delete(ctx context.Context, keywords ...string) error

	// List returns all cache entries
	List(ctx context.Context) ([]Entry, error)
}

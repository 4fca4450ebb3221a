package reply

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for the reply queue (Postgres)
type Repository interface {
	// Create inserts a new drafted reply
	Create(ctx context.Context, r *PendingReply) error

	// GetByID returns a reply by ID, or errors.ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*PendingReply, error)

	// ListApproved returns moderator-approved replies ready to post,
	// oldest first
	ListApproved(ctx context.Context, limit int) ([]PendingReply, error)

	// MarkPosted marks a reply as successfully posted
	MarkPosted(ctx context.Context, id uuid.UUID) error

	// MarkResolved marks a reply terminal without posting (duplicate content,
	// restricted reply)
	MarkResolved(ctx context.Context, id uuid.UUID, reason string) error

	// MarkFailed records a failed posting attempt
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

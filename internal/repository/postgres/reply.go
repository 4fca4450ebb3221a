package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"echowatch/internal/domain/reply"
	pkgerrors "echowatch/pkg/errors"
)

// Compile-time check
var _ reply.Repository = (*ReplyRepository)(nil)

// ReplyRepository implements reply.Repository using sqlx
type ReplyRepository struct {
	db *sqlx.DB
}

// NewReplyRepository creates a new reply repository
func NewReplyRepository(db *sqlx.DB) *ReplyRepository {
	return &ReplyRepository{db: db}
}

// Create inserts a new drafted reply
func (r *ReplyRepository) Create(ctx context.Context, pr *reply.PendingReply) error {
	query := `
		INSERT INTO pending_replies (
			id, tweet_id, keyword, episode_slug, text, status, failure_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		pr.ID, pr.TweetID, pr.Keyword, pr.EpisodeSlug, pr.Text,
		pr.Status, pr.FailureReason, pr.CreatedAt, pr.UpdatedAt,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create pending reply")
	}

	return nil
}

// GetByID retrieves a reply by ID
func (r *ReplyRepository) GetByID(ctx context.Context, id uuid.UUID) (*reply.PendingReply, error) {
	query := `
		SELECT id, tweet_id, keyword, episode_slug, text, status, failure_reason,
		       created_at, updated_at, posted_at
		FROM pending_replies
		WHERE id = $1`

	var pr reply.PendingReply
	err := r.db.GetContext(ctx, &pr, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "pending reply %s", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get pending reply")
	}

	return &pr, nil
}

// ListApproved retrieves moderator-approved replies ready to post, oldest first
func (r *ReplyRepository) ListApproved(ctx context.Context, limit int) ([]reply.PendingReply, error) {
	query := `
		SELECT id, tweet_id, keyword, episode_slug, text, status, failure_reason,
		       created_at, updated_at, posted_at
		FROM pending_replies
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	var replies []reply.PendingReply
	if err := r.db.SelectContext(ctx, &replies, query, reply.StatusApproved, limit); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list approved replies")
	}

	return replies, nil
}

// MarkPosted marks a reply as successfully posted
func (r *ReplyRepository) MarkPosted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE pending_replies
		SET status = $1, posted_at = NOW(), updated_at = NOW()
		WHERE id = $2`

	return r.exec(ctx, query, id, reply.StatusPosted, id)
}

// MarkResolved marks a reply terminal without posting
func (r *ReplyRepository) MarkResolved(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE pending_replies
		SET status = $1, failure_reason = $3, updated_at = NOW()
		WHERE id = $2`

	return r.exec(ctx, query, id, reply.StatusResolved, id, reason)
}

// MarkFailed records a failed posting attempt
func (r *ReplyRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE pending_replies
		SET status = $1, failure_reason = $3, updated_at = NOW()
		WHERE id = $2`

	return r.exec(ctx, query, id, reply.StatusFailed, id, reason)
}

func (r *ReplyRepository) exec(ctx context.Context, query string, id uuid.UUID, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to update pending reply")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check reply update")
	}
	if rows == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "pending reply %s", id)
	}

	return nil
}

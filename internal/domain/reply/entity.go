package reply

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queued reply
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved" // moderator approved, ready to post
	StatusPosted   Status = "posted"
	StatusResolved Status = "resolved" // terminal without posting (duplicate, restricted)
	StatusFailed   Status = "failed"
)

// Outcome classifies the result of a single posting attempt
type Outcome string

const (
	OutcomePosted      Outcome = "posted"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeRestricted  Outcome = "restricted"
	OutcomeFailed      Outcome = "failed"
)

// PendingReply is a drafted response awaiting moderated posting
type PendingReply struct {
	ID            uuid.UUID  `db:"id"`
	TweetID       string     `db:"tweet_id"`
	Keyword       string     `db:"keyword"`
	EpisodeSlug   string     `db:"episode_slug"`
	Text          string     `db:"text"`
	Status        Status     `db:"status"`
	FailureReason string     `db:"failure_reason"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	PostedAt      *time.Time `db:"posted_at"`
}

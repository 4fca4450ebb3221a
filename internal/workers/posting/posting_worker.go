package posting

import (
	"context"

	"echowatch/internal/adapters/twitter"
	"echowatch/internal/domain/reply"
	"echowatch/internal/metrics"
	postingsvc "echowatch/internal/services/posting"
	"echowatch/internal/workers"
	pkgerrors "echowatch/pkg/errors"
)

// Config contains configuration for the posting worker
type Config struct {
	BatchSize int
}

// Worker drains the approved reply queue through the rate-limit-aware
// posting controller and persists each item's terminal status.
type Worker struct {
	*workers.BaseWorker

	twitter    *twitter.Client
	controller *postingsvc.Controller
	replies    reply.Repository
	config     Config
}

// NewWorker creates a new posting worker
func NewWorker(
	twitterClient *twitter.Client,
	controller *postingsvc.Controller,
	replies reply.Repository,
	config Config,
	base *workers.BaseWorker,
) *Worker {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}

	return &Worker{
		BaseWorker: base,
		twitter:    twitterClient,
		controller: controller,
		replies:    replies,
		config:     config,
	}
}

// Run posts one batch of approved replies
func (w *Worker) Run(ctx context.Context) error {
	approved, err := w.replies.ListApproved(ctx, w.config.BatchSize)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load approved replies")
	}
	if len(approved) == 0 {
		w.Log().Debug("No approved replies to post")
		return nil
	}

	items := make([]*reply.PendingReply, len(approved))
	for i := range approved {
		items[i] = &approved[i]
	}

	result, runErr := w.controller.Run(ctx, items, w.post)

	w.Log().Info("Posting batch finished",
		"posted", result.Posted,
		"resolved", result.Resolved,
		"failed", result.Failed,
		"rate_limits", result.RateLimits,
		"final_state", result.FinalState,
	)

	if result.RateLimits > 0 {
		metrics.RateLimitWaits.Add(float64(result.RateLimits))
	}

	if runErr != nil && pkgerrors.Is(runErr, pkgerrors.ErrConsecutiveFailures) {
		// A failure streak usually means something systemic (revoked token,
		// suspended account), not bad luck on ten items in a row
		w.Log().Error("Posting aborted on consecutive failures", "error", runErr)
	}

	return runErr
}

// post attempts one reply and classifies the outcome for the controller.
// Status persistence happens here so an aborted run leaves no ambiguity
// about which items were attempted.
func (w *Worker) post(ctx context.Context, r *reply.PendingReply) reply.Outcome {
	err := w.twitter.PostReply(ctx, r.TweetID, r.Text)

	outcome := outcomeFor(err)
	metrics.RecordPostAttempt(string(outcome))

	switch outcome {
	case reply.OutcomePosted:
		if err := w.replies.MarkPosted(ctx, r.ID); err != nil {
			w.Log().Error("Failed to mark reply posted", "reply_id", r.ID, "error", err)
		}

	case reply.OutcomeRateLimited:
		// No status change: the controller retries the same item after the
		// window resets

	case reply.OutcomeDuplicate, reply.OutcomeRestricted:
		if markErr := w.replies.MarkResolved(ctx, r.ID, err.Error()); markErr != nil {
			w.Log().Error("Failed to mark reply resolved", "reply_id", r.ID, "error", markErr)
		}

	default:
		if markErr := w.replies.MarkFailed(ctx, r.ID, err.Error()); markErr != nil {
			w.Log().Error("Failed to mark reply failed", "reply_id", r.ID, "error", markErr)
		}
	}

	return outcome
}

// outcomeFor maps a posting error to its controller outcome
func outcomeFor(err error) reply.Outcome {
	switch {
	case err == nil:
		return reply.OutcomePosted
	case pkgerrors.Is(err, pkgerrors.ErrRateLimitExceeded):
		return reply.OutcomeRateLimited
	case pkgerrors.Is(err, pkgerrors.ErrDuplicateContent):
		return reply.OutcomeDuplicate
	case pkgerrors.Is(err, pkgerrors.ErrReplyRestricted):
		return reply.OutcomeRestricted
	default:
		return reply.OutcomeFailed
	}
}

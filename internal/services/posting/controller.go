package posting

import (
	"context"
	"time"

	"echowatch/internal/domain/reply"
	pkgerrors "echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// State is the posting run's state machine position
type State string

const (
	StatePosting     State = "POSTING"
	StateRateLimited State = "RATE_LIMITED"
	StateWaiting     State = "WAITING"
	StateDone        State = "DONE"
	StateAborted     State = "ABORTED"
)

// rateLimitWindow is the provider's rolling rate-limit window. Windows are
// aligned to clock quarters (:00/:15/:30/:45), so the exact reset moment is
// computable from the wall clock.
const rateLimitWindow = 15 * time.Minute

// Config contains configuration for the posting controller
type Config struct {
	// MaxConsecutiveFailures aborts the run once this many genuine failures
	// occur back to back. Rate-limit events do not count.
	MaxConsecutiveFailures int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{MaxConsecutiveFailures: 10}
}

// PostFunc attempts to post one reply and classifies the outcome
type PostFunc func(ctx context.Context, r *reply.PendingReply) reply.Outcome

// Result summarizes a posting run
type Result struct {
	Posted     int   `json:"posted"`
	Resolved   int   `json:"resolved"`
	Failed     int   `json:"failed"`
	RateLimits int   `json:"rate_limits"`
	FinalState State `json:"final_state"`
}

// Controller drives bulk posting through provider rate limits. On a
// rate-limit response it computes the exact reset boundary of the current
// window and pauses until then, resuming at the earliest safe moment
// instead of thrashing on fixed-delay retries.
type Controller struct {
	config Config
	log    *logger.Logger
	state  State
	now    func() time.Time
}

// NewController creates a new posting controller
func NewController(config Config) *Controller {
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = DefaultConfig().MaxConsecutiveFailures
	}

	return &Controller{
		config: config,
		log:    logger.Get().With("component", "posting_controller"),
		state:  StatePosting,
		now:    time.Now,
	}
}

// State returns the controller's current state
func (c *Controller) State() State {
	return c.state
}

// NextWindowReset returns the next quarter-hour boundary strictly after t.
// Minute/hour/day carry is handled by time.Date normalization; if clock skew
// puts the computed boundary at or before t, a full window is added so the
// wait always makes forward progress.
func NextWindowReset(t time.Time) time.Time {
	windowStart := (t.Minute() / 15) * 15
	reset := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), windowStart+15, 0, 0, t.Location())

	if !reset.After(t) {
		reset = reset.Add(rateLimitWindow)
	}
	return reset
}

// Run posts the queued replies in order. The posting loop is deliberately
// sequential: nothing posts ahead of a rate-limit pause. Cancellation is
// checked both before entering a wait and immediately after waking, so a
// long pause can be aborted promptly.
//
// Outcome handling per item:
//   - posted: resets the consecutive-failure counter, advance
//   - rate limited: wait out the window, then retry the same item
//   - duplicate / restricted: terminal for the item, counts as a failure
//     toward the ceiling, advance
//   - failed: counts toward the ceiling, advance
//
// Reaching the ceiling aborts the run with ErrConsecutiveFailures; the
// result still reports the items processed before the abort.
func (c *Controller) Run(ctx context.Context, items []*reply.PendingReply, post PostFunc) (*Result, error) {
	result := &Result{}
	consecutiveFailures := 0
	c.state = StatePosting

	i := 0
	for i < len(items) {
		if err := ctx.Err(); err != nil {
			c.state = StateAborted
			result.FinalState = c.state
			return result, err
		}

		item := items[i]
		outcome := post(ctx, item)

		switch outcome {
		case reply.OutcomePosted:
			result.Posted++
			consecutiveFailures = 0
			i++

		case reply.OutcomeRateLimited:
			result.RateLimits++
			c.state = StateRateLimited

			if err := c.waitForWindowReset(ctx); err != nil {
				c.state = StateAborted
				result.FinalState = c.state
				return result, err
			}
			c.state = StatePosting
			// Retry the same item; the rate limit said nothing about it

		case reply.OutcomeDuplicate, reply.OutcomeRestricted:
			result.Resolved++
			consecutiveFailures++
			i++

		default: // reply.OutcomeFailed
			result.Failed++
			consecutiveFailures++
			i++
		}

		if consecutiveFailures >= c.config.MaxConsecutiveFailures {
			c.state = StateAborted
			result.FinalState = c.state
			c.log.Error("Posting run aborted",
				"consecutive_failures", consecutiveFailures,
				"posted_before_abort", result.Posted,
			)
			return result, pkgerrors.Wrapf(pkgerrors.ErrConsecutiveFailures,
				"%d consecutive failures after %d posts", consecutiveFailures, result.Posted)
		}
	}

	c.state = StateDone
	result.FinalState = c.state
	return result, nil
}

// waitForWindowReset blocks until the provider's rate-limit window resets.
// Cancellation is honored before the wait starts and the moment it fires.
func (c *Controller) waitForWindowReset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := c.now()
	reset := NextWindowReset(now)
	wait := reset.Sub(now)

	c.state = StateWaiting
	c.log.Info("Rate limited, waiting for window reset",
		"reset_at", reset.Format(time.TimeOnly),
		"wait", wait.Round(time.Second),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	return ctx.Err()
}

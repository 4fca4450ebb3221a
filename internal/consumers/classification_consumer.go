package consumers

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"echowatch/internal/adapters/kafka"
	"echowatch/internal/metrics"
	keywordsvc "echowatch/internal/services/keyword"
	pkgerrors "echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// ClassificationVerdict is the message the relevance classifier publishes for
// each tweet it judges
type ClassificationVerdict struct {
	Keyword  string `json:"keyword"`
	TweetID  string `json:"tweet_id"`
	Relevant bool   `json:"relevant"`
}

// ClassificationConsumer feeds classifier verdicts into the effectiveness
// tracker and re-derives the keyword's learned weight after each one. Offsets
// commit only after both writes succeed, so verdicts are never silently lost.
type ClassificationConsumer struct {
	consumer *kafka.Consumer
	tracker  *keywordsvc.Tracker
	learner  *keywordsvc.Learner
	log      *logger.Logger
}

// NewClassificationConsumer creates a new classification consumer
func NewClassificationConsumer(
	consumer *kafka.Consumer,
	tracker *keywordsvc.Tracker,
	learner *keywordsvc.Learner,
) *ClassificationConsumer {
	return &ClassificationConsumer{
		consumer: consumer,
		tracker:  tracker,
		learner:  learner,
		log:      logger.Get().With("component", "classification_consumer"),
	}
}

// Start begins consuming classification verdicts. Blocks until the context
// is cancelled or the consumer fails.
func (c *ClassificationConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close shuts down the underlying Kafka reader
func (c *ClassificationConsumer) Close() error {
	return c.consumer.Close()
}

func (c *ClassificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var verdict ClassificationVerdict
	if err := json.Unmarshal(msg.Value, &verdict); err != nil {
		// Malformed messages are logged and committed: redelivery cannot fix
		// a payload that never parses
		c.log.Error("Dropping malformed classification message",
			"offset", msg.Offset,
			"error", err,
		)
		metrics.ClassificationsConsumed.WithLabelValues("error").Inc()
		return nil
	}

	if verdict.Keyword == "" || verdict.TweetID == "" {
		c.log.Warn("Dropping classification with missing fields",
			"offset", msg.Offset,
			"keyword", verdict.Keyword,
			"tweet_id", verdict.TweetID,
		)
		metrics.ClassificationsConsumed.WithLabelValues("error").Inc()
		return nil
	}

	if err := c.tracker.RecordClassification(ctx, verdict.Keyword, verdict.Relevant); err != nil {
		metrics.ClassificationsConsumed.WithLabelValues("error").Inc()
		return pkgerrors.Wrap(err, "failed to record classification")
	}

	if err := c.learner.UpdateWeight(ctx, verdict.Keyword); err != nil {
		metrics.ClassificationsConsumed.WithLabelValues("error").Inc()
		return pkgerrors.Wrap(err, "failed to update keyword weight")
	}

	metrics.ClassificationsConsumed.WithLabelValues("success").Inc()
	return nil
}

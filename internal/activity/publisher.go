package activity

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rollbook/internal/metrics"
	"rollbook/internal/queue"
)

// MessageType tags activity messages on the shared queue.
const MessageType = "activity"

// Publisher sends feed lines through a queue so that writers never block on
// the feed collection.
type Publisher struct {
	q   queue.Queue
	log zerolog.Logger
}

// NewPublisher publishes to q.
func NewPublisher(q queue.Queue, log zerolog.Logger) *Publisher {
	return &Publisher{q: q, log: log.With().Str("component", "activity").Logger()}
}

// Notify enqueues text. Failures are logged, never returned: the feed is
// informational and must not fail the operation that produced it.
func (p *Publisher) Notify(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	msg := queue.Message{Type: MessageType, Body: []byte(text), At: time.Now().UTC()}
	if err := p.q.Publish(ctx, msg); err != nil {
		metrics.ActivityEvents.WithLabelValues("publish_failed").Inc()
		p.log.Warn().Err(err).Str("text", text).Msg("activity publish failed")
		return
	}
	metrics.ActivityEvents.WithLabelValues("published").Inc()
}

// Drain appends every activity message from q to feed until ctx ends.
func Drain(ctx context.Context, q queue.Queue, feed *Feed, log zerolog.Logger) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if msg.Type != MessageType {
			continue
		}
		at := msg.At
		if at.IsZero() {
			at = time.Now()
		}
		if err := feed.AddAt(ctx, string(msg.Body), at); err != nil {
			metrics.ActivityEvents.WithLabelValues("store_failed").Inc()
			log.Error().Err(err).Msg("activity append failed")
			continue
		}
		metrics.ActivityEvents.WithLabelValues("stored").Inc()
	}
	return nil
}

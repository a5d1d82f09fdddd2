package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RiskPool/internal/engine"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// OutboundPublisher publishes committed pool events to NATS for downstream
// consumers. Subjects follow riskpool.events.{event_type}. Publish failure
// is non-fatal: consumers can always rebuild from the event log.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
	logger    zerolog.Logger
}

// publishedEvent is the outbound wire format.
type publishedEvent struct {
	Sequence  int64       `json:"sequence"`
	EventType string      `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan engine.Output, logger zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		logger:    logger.With().Str("component", "publisher").Logger(),
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				op.logger.Warn().
					Err(err).
					Int64("sequence", out.Envelope.Sequence).
					Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out engine.Output) error {
	data, err := json.Marshal(publishedEvent{
		Sequence:  out.Envelope.Sequence,
		EventType: out.Envelope.EventType.String(),
		Timestamp: out.Envelope.Timestamp,
		Payload:   out.Event,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", EventSubjectPrefix, out.Envelope.EventType.String())
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// RawRequest is an unparsed settlement request from NATS, ready for the
// runner to parse, authorize, and execute.
type RawRequest struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

// SettlementSubscriber consumes settlement requests from JetStream and
// feeds them into the request channel. The message is acked only after it
// is queued; a full channel blocks the consumer callback, which becomes
// redelivery backpressure.
type SettlementSubscriber struct {
	js          jetstream.JetStream
	requestChan chan<- RawRequest
	logger      zerolog.Logger
	consumer    jetstream.ConsumeContext
}

func NewSettlementSubscriber(js jetstream.JetStream, requestChan chan<- RawRequest, logger zerolog.Logger) *SettlementSubscriber {
	return &SettlementSubscriber{
		js:          js,
		requestChan: requestChan,
		logger:      logger.With().Str("component", "settlement_subscriber").Logger(),
	}
}

// Subscribe creates the durable JetStream consumer. Explicit ACK,
// max_deliver=5, ack_wait=30s.
func (s *SettlementSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, SettlementStream, jetstream.ConsumerConfig{
		Durable:       "riskpool-settlements",
		FilterSubject: SettlementSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawRequest{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
		}

		select {
		case s.requestChan <- raw:
			msg.Ack()
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	s.consumer = cc
	s.logger.Info().Str("subject", SettlementSubject).Msg("subscribed")
	return nil
}

// Stop gracefully stops the consumer.
func (s *SettlementSubscriber) Stop() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
	s.logger.Info().Msg("settlement subscriber stopped")
}

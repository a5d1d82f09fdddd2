package ingestion

import (
	"context"
	"errors"

	"RiskPool/internal/engine"
	"RiskPool/internal/gate"

	"github.com/rs/zerolog"
)

// Settler is the slice of the engine the runner drives.
type Settler interface {
	Settle(ctx context.Context, caller gate.Principal, policyIDs []uint64, ratioBps int64) (engine.SettleResult, error)
}

// SettlementRunner drains the request channel: parse, authorize, execute.
// Bad requests are logged and dropped; the channel send already acked the
// message, and settlement is idempotent per policy, so a retried request
// from the producer side is harmless.
type SettlementRunner struct {
	requestChan <-chan RawRequest
	settler     Settler
	verifier    *gate.TokenVerifier
	logger      zerolog.Logger
}

func NewSettlementRunner(
	requestChan <-chan RawRequest,
	settler Settler,
	verifier *gate.TokenVerifier,
	logger zerolog.Logger,
) *SettlementRunner {
	return &SettlementRunner{
		requestChan: requestChan,
		settler:     settler,
		verifier:    verifier,
		logger:      logger.With().Str("component", "settlement_runner").Logger(),
	}
}

// Run processes requests until the context is cancelled or the channel
// closes.
func (r *SettlementRunner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-r.requestChan:
			if !ok {
				return nil
			}
			r.process(ctx, raw)
		}
	}
}

func (r *SettlementRunner) process(ctx context.Context, raw RawRequest) {
	req, err := ParseSettlementRequest(raw.Data)
	if err != nil {
		r.logger.Error().Err(err).Str("subject", raw.Subject).Msg("malformed settlement request dropped")
		return
	}

	principal, err := r.verifier.Verify(req.Token)
	if err != nil {
		r.logger.Warn().Err(err).Str("request_id", req.RequestID.String()).Msg("settlement request rejected")
		return
	}

	res, err := r.settler.Settle(ctx, principal, req.PolicyIDs, req.RatioBps)
	if err != nil {
		event := r.logger.Warn()
		if errors.Is(err, engine.ErrPaused) {
			// Producer retries after the halt lifts.
			event = r.logger.Info()
		}
		event.Err(err).
			Str("request_id", req.RequestID.String()).
			Str("caller", principal.Subject).
			Msg("settlement request failed")
		return
	}

	r.logger.Info().
		Str("request_id", req.RequestID.String()).
		Str("caller", principal.Subject).
		Int("settled", res.SettledCount).
		Int("skipped", res.Skipped).
		Int64("total_paid", res.TotalPaid).
		Msg("settlement request executed")
}

package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"RiskPool/internal/engine"
	"RiskPool/internal/event"

	"github.com/rs/zerolog"
)

// LoggedEvent is one event-log row, as Rebuild consumes it.
type LoggedEvent struct {
	Sequence  int64
	EventType string
	Payload   []byte
	Timestamp time.Time
}

// Worker maintains the read-model tables from the event stream. Its input
// channel is fed with non-blocking sends, so a slow worker loses events;
// that is acceptable because every table can be rebuilt from the event
// log via Rebuild.
type Worker struct {
	db        *sql.DB
	inputChan <-chan engine.Output
	logger    zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan engine.Output, logger zerolog.Logger) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		logger:    logger.With().Str("component", "projection").Logger(),
	}
}

// Run applies events to the projection tables until the context is
// cancelled or the channel closes. Failures are logged and skipped; the
// tables are eventually consistent.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			payload, err := json.Marshal(out.Event)
			if err != nil {
				w.logger.Error().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("marshal projection event")
				continue
			}
			if err := w.Apply(ctx, out.Envelope, payload); err != nil {
				w.logger.Warn().
					Err(err).
					Int64("sequence", out.Envelope.Sequence).
					Msg("projection update failed")
			}
		}
	}
}

// Apply updates the read models for one event. Also used by Rebuild, which
// feeds it rows straight from the event log.
func (w *Worker) Apply(ctx context.Context, env *event.Envelope, payload []byte) error {
	switch env.EventType {
	case event.EventTypeDepositCompleted:
		var evt event.DepositCompleted
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		if _, err := w.db.ExecContext(ctx, `
			INSERT INTO projections.lp_shares (account_id, shares, as_of_sequence)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_id) DO UPDATE
			SET shares = projections.lp_shares.shares + EXCLUDED.shares,
			    as_of_sequence = EXCLUDED.as_of_sequence
		`, evt.Account, evt.SharesMinted, env.Sequence); err != nil {
			return err
		}
		return w.upsertPoolState(ctx, evt.PoolBalance, evt.TotalShares, env.Sequence)

	case event.EventTypeWithdrawalCompleted:
		var evt event.WithdrawalCompleted
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		if _, err := w.db.ExecContext(ctx, `
			UPDATE projections.lp_shares
			SET shares = shares - $2, as_of_sequence = $3
			WHERE account_id = $1
		`, evt.Account, evt.SharesBurned, env.Sequence); err != nil {
			return err
		}
		return w.upsertPoolState(ctx, evt.PoolBalance, evt.TotalShares, env.Sequence)

	case event.EventTypePolicyCreated:
		var evt event.PolicyCreated
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		_, err := w.db.ExecContext(ctx, `
			INSERT INTO projections.policies
				(policy_id, owner_id, premium, max_payout, start_time, end_time, region, status, as_of_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'Active', $8)
			ON CONFLICT (policy_id) DO NOTHING
		`, evt.PolicyID, evt.Owner, evt.Premium, evt.MaxPayout, evt.StartTime, evt.EndTime, evt.Region, env.Sequence)
		return err

	case event.EventTypePolicySettled:
		var evt event.PolicySettled
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		if _, err := w.db.ExecContext(ctx, `
			UPDATE projections.policies
			SET status = 'Settled',
			    payout_ratio_bps = $2,
			    payout = $3,
			    settled_at = $4,
			    as_of_sequence = $5
			WHERE policy_id = $1
		`, evt.PolicyID, evt.PayoutRatioBps, evt.Payout, env.Timestamp, env.Sequence); err != nil {
			return err
		}
		return w.upsertPoolState(ctx, evt.PoolBalance, -1, env.Sequence)

	case event.EventTypePauseToggled, event.EventTypeReserveRatioChanged:
		// Configuration events carry no read-model state.
		return nil

	default:
		return fmt.Errorf("unknown event type %s", env.EventType)
	}
}

// upsertPoolState keeps the single-row pool summary current. totalShares
// of -1 leaves the stored value unchanged (settlement events do not carry
// share totals).
func (w *Worker) upsertPoolState(ctx context.Context, capital, totalShares, sequence int64) error {
	if totalShares < 0 {
		_, err := w.db.ExecContext(ctx, `
			UPDATE projections.pool_state
			SET capital = $1, as_of_sequence = $2
			WHERE id = 1
		`, capital, sequence)
		return err
	}
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO projections.pool_state (id, capital, total_shares, as_of_sequence)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET capital = EXCLUDED.capital,
		    total_shares = EXCLUDED.total_shares,
		    as_of_sequence = EXCLUDED.as_of_sequence
	`, capital, totalShares, sequence)
	return err
}

// Rebuild truncates the read models and replays the full event log into
// them. Used when drops have left the projections behind.
func (w *Worker) Rebuild(ctx context.Context, loadEvents func(ctx context.Context, from int64, limit int) ([]LoggedEvent, error)) error {
	if _, err := w.db.ExecContext(ctx, `
		TRUNCATE projections.policies, projections.lp_shares, projections.pool_state
	`); err != nil {
		return fmt.Errorf("truncate projections: %w", err)
	}

	const batch = 10_000
	from := int64(0)
	var applied int64

	for {
		rows, err := loadEvents(ctx, from, batch)
		if err != nil {
			return fmt.Errorf("load events from %d: %w", from, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			env := &event.Envelope{
				Sequence:  row.Sequence,
				EventType: event.ParseEventType(row.EventType),
				Timestamp: row.Timestamp,
			}
			if err := w.Apply(ctx, env, row.Payload); err != nil {
				return fmt.Errorf("apply seq %d: %w", row.Sequence, err)
			}
			applied++
		}

		from = rows[len(rows)-1].Sequence + 1
		if len(rows) < batch {
			break
		}
	}

	w.logger.Info().Int64("events", applied).Msg("projections rebuilt")
	return nil
}

package persistence

import (
	"context"
	"fmt"

	"RiskPool/internal/engine"
	"RiskPool/internal/event"

	"github.com/rs/zerolog"
)

const replayBatchSize = 10_000

// Recover restores the engine from the latest snapshot and replays the
// event log from there. Returns the number of replayed events. Must run
// before the engine serves any traffic.
func Recover(ctx context.Context, eng *engine.Engine, sm *SnapshotManager, logger zerolog.Logger) (int64, error) {
	log := logger.With().Str("component", "recovery").Logger()

	snap, err := sm.LoadLatestSnapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}

	from := int64(0)
	if snap != nil {
		eng.RestoreFromSnapshot(snap)
		from = snap.Sequence
		log.Info().Int64("sequence", snap.Sequence).Msg("snapshot loaded")
	} else {
		log.Info().Msg("no snapshot, replaying full event log")
	}

	var replayed int64
	for {
		rows, err := sm.LoadEventsFrom(ctx, from, replayBatchSize)
		if err != nil {
			return replayed, fmt.Errorf("load events from %d: %w", from, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			et := event.ParseEventType(row.EventType)
			if err := eng.ReplayEvent(row.Sequence, et, row.Payload); err != nil {
				return replayed, fmt.Errorf("replay: %w", err)
			}
			replayed++
		}

		from = rows[len(rows)-1].Sequence + 1
		if len(rows) < replayBatchSize {
			break
		}
	}

	log.Info().
		Int64("replayed", replayed).
		Int64("sequence", eng.Sequence()).
		Msg("recovery complete")

	return replayed, nil
}

package engine

import (
	"RiskPool/internal/pool"

	"github.com/google/uuid"
)

// SnapshotState holds the serializable engine state for warm restart.
type SnapshotState struct {
	Sequence        int64               `json:"sequence"`
	Capital         int64               `json:"capital"`
	ReserveRatioBps int64               `json:"reserve_ratio_bps"`
	Paused          bool                `json:"paused"`
	Shares          map[uuid.UUID]int64 `json:"shares"`
	Policies        []*pool.Policy      `json:"policies"`
	NextPolicyID    uint64              `json:"next_policy_id"`
}

// CreateSnapshotState captures the current state.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return &SnapshotState{
		Sequence:        e.sequence,
		Capital:         e.capital,
		ReserveRatioBps: e.reserveRatioBps,
		Paused:          e.paused,
		Shares:          e.shares.Snapshot(),
		Policies:        e.policies.All(),
		NextPolicyID:    e.policies.NextID(),
	}
}

// RestoreFromSnapshot replaces engine state on warm restart. Called before
// the engine serves any traffic.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sequence = snap.Sequence
	e.capital = snap.Capital
	e.reserveRatioBps = snap.ReserveRatioBps
	e.paused = snap.Paused
	e.shares.Restore(snap.Shares)
	e.policies.Restore(snap.Policies, snap.NextPolicyID)

	if e.metrics != nil {
		e.metrics.Sequence.Set(float64(e.sequence))
		e.metrics.ReserveRatio.Set(float64(e.reserveRatioBps))
		if e.paused {
			e.metrics.Paused.Set(1)
		}
		e.updateGauges()
	}

	e.logger.Info().
		Int64("sequence", e.sequence).
		Int64("capital", e.capital).
		Int("policies", e.policies.Count()).
		Msg("state restored from snapshot")
}

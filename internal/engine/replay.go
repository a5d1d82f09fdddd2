package engine

import (
	"encoding/json"
	"fmt"

	"RiskPool/internal/event"
	"RiskPool/internal/pool"
)

// ReplayEvent re-applies a logged event to engine state during recovery.
// Replay mutates state directly from the recorded outcome: no port calls,
// no authorization, no re-emission. Events must arrive in sequence order.
func (e *Engine) ReplayEvent(sequence int64, eventType event.EventType, payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sequence < e.sequence {
		// Already covered by the snapshot.
		return nil
	}
	if sequence > e.sequence {
		return fmt.Errorf("replay gap: have sequence %d, got event %d", e.sequence, sequence)
	}

	switch eventType {
	case event.EventTypeDepositCompleted:
		var evt event.DepositCompleted
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("replay %s seq %d: %w", eventType, sequence, err)
		}
		e.shares.Mint(evt.Account, evt.SharesMinted)
		e.capital = evt.PoolBalance

	case event.EventTypePolicyCreated:
		var evt event.PolicyCreated
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("replay %s seq %d: %w", eventType, sequence, err)
		}
		e.capital += evt.Premium
		e.policies.Insert(&pool.Policy{
			ID:        evt.PolicyID,
			Owner:     evt.Owner,
			Premium:   evt.Premium,
			MaxPayout: evt.MaxPayout,
			StartTime: evt.StartTime,
			EndTime:   evt.EndTime,
			Status:    pool.StatusActive,
			Region:    evt.Region,
		})

	case event.EventTypePolicySettled:
		var evt event.PolicySettled
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("replay %s seq %d: %w", eventType, sequence, err)
		}
		if err := e.policies.MarkSettled(evt.PolicyID, evt.PayoutRatioBps, evt.Payout); err != nil {
			return fmt.Errorf("replay %s seq %d: %w", eventType, sequence, err)
		}
		e.capital = evt.PoolBalance

	case event.EventTypeWithdrawalCompleted:
		var evt event.WithdrawalCompleted
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("replay %s seq %d: %w", eventType, sequence, err)
		}
		if err := e.shares.Burn(evt.Account, evt.SharesBurned); err != nil {
			return fmt.Errorf("replay %s seq %d: %w", eventType, sequence, err)
		}
		e.capital = evt.PoolBalance

	case event.EventTypePauseToggled:
		var evt event.PauseToggled
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("replay %s seq %d: %w", eventType, sequence, err)
		}
		e.paused = evt.Paused

	case event.EventTypeReserveRatioChanged:
		var evt event.ReserveRatioChanged
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("replay %s seq %d: %w", eventType, sequence, err)
		}
		e.reserveRatioBps = evt.NewBps

	default:
		return fmt.Errorf("replay seq %d: unknown event type %s", sequence, eventType)
	}

	e.sequence = sequence + 1
	e.postCheckInvariants()
	return nil
}

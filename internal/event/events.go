package event

import (
	"time"

	"github.com/google/uuid"
)

// DepositCompleted signals a successful LP deposit.
type DepositCompleted struct {
	Account      uuid.UUID `json:"account"`
	Amount       int64     `json:"amount"`
	SharesMinted int64     `json:"shares_minted"`
	TotalShares  int64     `json:"total_shares"`
	PoolBalance  int64     `json:"pool_balance"`
}

func (e *DepositCompleted) EventType() EventType { return EventTypeDepositCompleted }

// PolicyCreated signals a successful policy purchase.
type PolicyCreated struct {
	PolicyID  uint64    `json:"policy_id"`
	Owner     uuid.UUID `json:"owner"`
	Premium   int64     `json:"premium"`
	MaxPayout int64     `json:"max_payout"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Region    string    `json:"region"`
}

func (e *PolicyCreated) EventType() EventType { return EventTypePolicyCreated }

// PolicySettled signals a single settled policy within a batch. One event
// is emitted per settled item, in batch order.
type PolicySettled struct {
	PolicyID       uint64    `json:"policy_id"`
	Owner          uuid.UUID `json:"owner"`
	PayoutRatioBps int64     `json:"payout_ratio_bps"`
	Payout         int64     `json:"payout"`
	Capped         bool      `json:"capped"`
	PoolBalance    int64     `json:"pool_balance"`
}

func (e *PolicySettled) EventType() EventType { return EventTypePolicySettled }

// WithdrawalCompleted signals a successful LP withdrawal.
type WithdrawalCompleted struct {
	Account      uuid.UUID `json:"account"`
	SharesBurned int64     `json:"shares_burned"`
	AmountPaid   int64     `json:"amount_paid"`
	TotalShares  int64     `json:"total_shares"`
	PoolBalance  int64     `json:"pool_balance"`
}

func (e *WithdrawalCompleted) EventType() EventType { return EventTypeWithdrawalCompleted }

// PauseToggled signals a change of the process-wide halt flag.
type PauseToggled struct {
	Paused bool   `json:"paused"`
	By     string `json:"by"`
}

func (e *PauseToggled) EventType() EventType { return EventTypePauseToggled }

// ReserveRatioChanged signals a reserve configuration change.
type ReserveRatioChanged struct {
	OldBps int64  `json:"old_bps"`
	NewBps int64  `json:"new_bps"`
	By     string `json:"by"`
}

func (e *ReserveRatioChanged) EventType() EventType { return EventTypeReserveRatioChanged }

package query

import (
	"time"

	"github.com/google/uuid"
)

// maxPageSize bounds list queries.
const maxPageSize = 200

// PolicyRecord is a projected policy row.
type PolicyRecord struct {
	PolicyID       uint64     `json:"policy_id"`
	Owner          uuid.UUID  `json:"owner"`
	Premium        int64      `json:"premium"`
	MaxPayout      int64      `json:"max_payout"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	Region         string     `json:"region"`
	Status         string     `json:"status"`
	PayoutRatioBps int64      `json:"payout_ratio_bps"`
	Payout         int64      `json:"payout"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
	AsOfSequence   int64      `json:"as_of_sequence"`
}

// ShareRecord is a projected LP share balance.
type ShareRecord struct {
	Account      uuid.UUID `json:"account"`
	Shares       int64     `json:"shares"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// PoolRecord is the projected pool summary.
type PoolRecord struct {
	Capital      int64 `json:"capital"`
	TotalShares  int64 `json:"total_shares"`
	AsOfSequence int64 `json:"as_of_sequence"`
}

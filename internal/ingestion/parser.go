package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SettlementRequest is a parsed, structurally valid settlement batch
// request. Authorization and ratio bounds are the engine's business.
type SettlementRequest struct {
	RequestID uuid.UUID
	PolicyIDs []uint64
	RatioBps  int64
	Token     string
}

// Wire format. Field names use snake_case to match upstream producers.
type settlementRequestJSON struct {
	RequestID      string   `json:"request_id"`
	PolicyIDs      []uint64 `json:"policy_ids"`
	PayoutRatioBps *int64   `json:"payout_ratio_bps"`
	Token          string   `json:"token"`
}

// ParseSettlementRequest converts raw JSON bytes into a SettlementRequest.
// A missing ratio is a structural error (zero is a valid ratio, so the
// field must be present, not defaulted).
func ParseSettlementRequest(data []byte) (*SettlementRequest, error) {
	var j settlementRequestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse settlement request: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	if j.PayoutRatioBps == nil {
		return nil, fmt.Errorf("settlement request %s: missing payout_ratio_bps", requestID)
	}
	if len(j.PolicyIDs) == 0 {
		return nil, fmt.Errorf("settlement request %s: empty policy_ids", requestID)
	}
	if j.Token == "" {
		return nil, fmt.Errorf("settlement request %s: missing token", requestID)
	}

	return &SettlementRequest{
		RequestID: requestID,
		PolicyIDs: j.PolicyIDs,
		RatioBps:  *j.PayoutRatioBps,
		Token:     j.Token,
	}, nil
}

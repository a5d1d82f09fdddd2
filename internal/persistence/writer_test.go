package persistence

import (
	"encoding/json"
	"testing"
	"time"

	"RiskPool/internal/engine"
	"RiskPool/internal/event"

	"github.com/google/uuid"
)

func TestToEventRow(t *testing.T) {
	account := uuid.New()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	out := engine.Output{
		Envelope: &event.Envelope{
			Sequence:  42,
			EventType: event.EventTypeDepositCompleted,
			Timestamp: ts,
		},
		Event: &event.DepositCompleted{
			Account:      account,
			Amount:       100,
			SharesMinted: 100,
			TotalShares:  100,
			PoolBalance:  100,
		},
	}

	row := toEventRow(out)

	if row.Sequence != 42 {
		t.Errorf("sequence: got %d, want 42", row.Sequence)
	}
	if row.EventType != "DepositCompleted" {
		t.Errorf("event type: got %s", row.EventType)
	}
	if !row.Timestamp.Equal(ts) {
		t.Errorf("timestamp: got %v, want %v", row.Timestamp, ts)
	}

	// The payload must round-trip for replay.
	var decoded event.DepositCompleted
	if err := json.Unmarshal(row.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.Account != account || decoded.Amount != 100 {
		t.Errorf("payload: got %+v", decoded)
	}
}

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"0001_init.up.sql", "0001"},
		{"0002_projections.up.sql", "0002"},
		{"noversion.sql", "noversion.sql"},
	}
	for _, tt := range tests {
		if got := extractVersion(tt.filename); got != tt.want {
			t.Errorf("extractVersion(%q): got %q, want %q", tt.filename, got, tt.want)
		}
	}
}

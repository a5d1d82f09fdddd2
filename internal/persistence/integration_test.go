package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"RiskPool/internal/engine"
	"RiskPool/internal/testutil"
)

// --- Event log round trip ---

func TestIntegration_EventLogRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := NewEventLogWriter(db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	rows := []EventRow{
		{Sequence: 0, EventType: "DepositCompleted", Payload: []byte(`{"amount":100}`), Timestamp: now},
		{Sequence: 1, EventType: "PolicyCreated", Payload: []byte(`{"premium":10}`), Timestamp: now},
		{Sequence: 2, EventType: "PolicySettled", Payload: []byte(`{"payout":50}`), Timestamp: now},
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := writer.WriteEventBatch(ctx, tx, rows); err != nil {
		tx.Rollback()
		t.Fatalf("write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Re-writing the same sequences must be a no-op.
	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := writer.WriteEventBatch(ctx, tx, rows); err != nil {
		tx.Rollback()
		t.Fatalf("duplicate write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit duplicate: %v", err)
	}

	sm := NewSnapshotManager(db)

	got, err := sm.LoadEventsFrom(ctx, 0, 100)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded events: got %d, want 3", len(got))
	}
	for i, row := range got {
		if row.Sequence != int64(i) {
			t.Errorf("event %d sequence: got %d, want %d", i, row.Sequence, i)
		}
	}
	if got[1].EventType != "PolicyCreated" {
		t.Errorf("event 1 type: got %s, want PolicyCreated", got[1].EventType)
	}

	latest, err := sm.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("latest sequence: %v", err)
	}
	if latest != 2 {
		t.Errorf("latest sequence: got %d, want 2", latest)
	}
}

// --- Snapshot round trip ---

func TestIntegration_SnapshotRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	sm := NewSnapshotManager(db)

	account := uuid.New()
	snap := &engine.SnapshotState{
		Sequence:        41,
		Capital:         1_000_000,
		ReserveRatioBps: 2500,
		Paused:          true,
		Shares:          map[uuid.UUID]int64{account: 500},
		NextPolicyID:    7,
	}
	if err := sm.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	loaded, err := sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if loaded == nil {
		t.Fatal("load snapshot: got nil, want snapshot")
	}

	if loaded.Sequence != 41 {
		t.Errorf("sequence: got %d, want 41", loaded.Sequence)
	}
	if loaded.Capital != 1_000_000 {
		t.Errorf("capital: got %d, want 1000000", loaded.Capital)
	}
	if !loaded.Paused {
		t.Error("paused flag lost in round trip")
	}
	if loaded.Shares[account] != 500 {
		t.Errorf("shares: got %d, want 500", loaded.Shares[account])
	}
	if loaded.NextPolicyID != 7 {
		t.Errorf("next policy id: got %d, want 7", loaded.NextPolicyID)
	}
}

package projection

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"RiskPool/internal/event"
	"RiskPool/internal/persistence"
	"RiskPool/internal/query"
	"RiskPool/internal/testutil"
)

func applyEvent(t *testing.T, w *Worker, seq int64, payload event.Event) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env := &event.Envelope{
		Sequence:  seq,
		EventType: payload.EventType(),
		Timestamp: time.Now().UTC(),
	}
	if err := w.Apply(context.Background(), env, data); err != nil {
		t.Fatalf("apply seq %d: %v", seq, err)
	}
}

func TestIntegration_ProjectionAndQuery(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	w := NewWorker(db, nil, zerolog.Nop())

	account := uuid.New()
	owner := uuid.New()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	applyEvent(t, w, 0, &event.DepositCompleted{
		Account: account, Amount: 1000, SharesMinted: 1000,
		TotalShares: 1000, PoolBalance: 1000,
	})
	applyEvent(t, w, 1, &event.PolicyCreated{
		PolicyID: 1, Owner: owner, Premium: 50, MaxPayout: 400,
		StartTime: start, EndTime: start.Add(24 * time.Hour), Region: "gulf-coast",
	})
	applyEvent(t, w, 2, &event.PolicySettled{
		PolicyID: 1, Owner: owner, PayoutRatioBps: 5000, Payout: 200,
		PoolBalance: 850,
	})
	applyEvent(t, w, 3, &event.WithdrawalCompleted{
		Account: account, SharesBurned: 100, AmountPaid: 85,
		TotalShares: 900, PoolBalance: 765,
	})

	qs := query.NewService(db)

	// --- Policy state after settlement ---
	p, err := qs.PolicyByID(ctx, 1)
	if err != nil {
		t.Fatalf("policy by id: %v", err)
	}
	if p == nil {
		t.Fatal("policy 1 missing from projection")
	}
	if p.Status != "Settled" {
		t.Errorf("policy status: got %s, want Settled", p.Status)
	}
	if p.Payout != 200 {
		t.Errorf("policy payout: got %d, want 200", p.Payout)
	}

	owned, err := qs.PoliciesByOwner(ctx, owner, 10)
	if err != nil {
		t.Fatalf("policies by owner: %v", err)
	}
	if len(owned) != 1 {
		t.Fatalf("policies by owner: got %d, want 1", len(owned))
	}

	// --- Share balance after withdrawal ---
	shares, err := qs.ShareBalance(ctx, account)
	if err != nil {
		t.Fatalf("share balance: %v", err)
	}
	if shares.Shares != 900 {
		t.Errorf("shares: got %d, want 900", shares.Shares)
	}

	// --- Pool state tracks the latest event ---
	pool, err := qs.PoolSummary(ctx)
	if err != nil {
		t.Fatalf("pool summary: %v", err)
	}
	if pool.Capital != 765 {
		t.Errorf("pool capital: got %d, want 765", pool.Capital)
	}
	if pool.AsOfSequence != 3 {
		t.Errorf("as-of sequence: got %d, want 3", pool.AsOfSequence)
	}
}

func TestIntegration_RebuildFromEventLog(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	account := uuid.New()
	deposit, _ := json.Marshal(&event.DepositCompleted{
		Account: account, Amount: 300, SharesMinted: 300,
		TotalShares: 300, PoolBalance: 300,
	})
	logged := []LoggedEvent{
		{Sequence: 0, EventType: "DepositCompleted", Payload: deposit, Timestamp: time.Now().UTC()},
	}

	w := NewWorker(db, nil, zerolog.Nop())
	loader := func(ctx context.Context, from int64, limit int) ([]LoggedEvent, error) {
		if from > 0 {
			return nil, nil
		}
		return logged, nil
	}

	if err := w.Rebuild(ctx, loader); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	qs := query.NewService(db)
	shares, err := qs.ShareBalance(ctx, account)
	if err != nil {
		t.Fatalf("share balance: %v", err)
	}
	if shares.Shares != 300 {
		t.Errorf("shares after rebuild: got %d, want 300", shares.Shares)
	}
}

package pool_test

import (
	"testing"
	"time"

	"RiskPool/internal/pool"

	"github.com/google/uuid"
)

// ============================================================================
// Test: ShareRegistry
// ============================================================================

func TestShareRegistry_InitialBalanceZero(t *testing.T) {
	r := pool.NewShareRegistry()
	if r.Balance(uuid.New()) != 0 {
		t.Error("unknown account should have zero balance")
	}
	if r.Total() != 0 {
		t.Error("fresh registry should have zero total")
	}
}

func TestShareRegistry_MintAndTotal(t *testing.T) {
	r := pool.NewShareRegistry()
	a, b := uuid.New(), uuid.New()

	r.Mint(a, 100)
	r.Mint(b, 50)
	r.Mint(a, 25)

	if got := r.Balance(a); got != 125 {
		t.Errorf("balance a: got %d, want 125", got)
	}
	if got := r.Total(); got != 175 {
		t.Errorf("total: got %d, want 175", got)
	}
	if err := r.ValidateTotal(); err != nil {
		t.Errorf("total invariant: %v", err)
	}
}

func TestShareRegistry_ZeroMintIsNoop(t *testing.T) {
	r := pool.NewShareRegistry()
	a := uuid.New()
	r.Mint(a, 0)
	if r.Total() != 0 {
		t.Error("zero mint should not change total")
	}
}

func TestShareRegistry_BurnInsufficient(t *testing.T) {
	r := pool.NewShareRegistry()
	a := uuid.New()
	r.Mint(a, 10)

	if err := r.Burn(a, 11); err == nil {
		t.Error("expected error burning more than balance")
	}
	// Failed burn must not mutate
	if r.Balance(a) != 10 || r.Total() != 10 {
		t.Error("failed burn mutated registry")
	}
}

func TestShareRegistry_BurnToZeroDropsAccount(t *testing.T) {
	r := pool.NewShareRegistry()
	a := uuid.New()
	r.Mint(a, 10)

	if err := r.Burn(a, 10); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if r.Balance(a) != 0 || r.Total() != 0 {
		t.Error("full burn should leave zero balance and total")
	}
	if err := r.ValidateTotal(); err != nil {
		t.Errorf("total invariant: %v", err)
	}
}

func TestShareRegistry_SnapshotRestore(t *testing.T) {
	r := pool.NewShareRegistry()
	a := uuid.New()
	r.Mint(a, 42)

	snap := r.Snapshot()

	r2 := pool.NewShareRegistry()
	r2.Restore(snap)
	if r2.Balance(a) != 42 || r2.Total() != 42 {
		t.Error("restore did not reproduce balances")
	}
}

// ============================================================================
// Test: PolicyRegistry
// ============================================================================

func TestPolicyRegistry_IDsMonotonicFromOne(t *testing.T) {
	r := pool.NewPolicyRegistry()
	now := time.Unix(1_700_000_000, 0)

	p1 := r.Create(uuid.New(), 50, 100, now, time.Hour, "eu-west")
	p2 := r.Create(uuid.New(), 50, 100, now, time.Hour, "eu-west")

	if p1.ID != 1 || p2.ID != 2 {
		t.Errorf("ids: got %d, %d, want 1, 2", p1.ID, p2.ID)
	}
}

func TestPolicyRegistry_CreateSetsWindow(t *testing.T) {
	r := pool.NewPolicyRegistry()
	now := time.Unix(1_700_000_000, 0)

	p := r.Create(uuid.New(), 50, 100, now, 30*time.Second, "us-east")

	if !p.EndTime.After(p.StartTime) {
		t.Error("endTime must be after startTime")
	}
	if p.Status != pool.StatusActive {
		t.Errorf("status: got %s, want Active", p.Status)
	}
	if p.Matured(now) {
		t.Error("policy should not be matured at creation")
	}
	if !p.Matured(now.Add(30 * time.Second)) {
		t.Error("policy should be matured at endTime")
	}
}

func TestPolicyRegistry_MarkSettledOnce(t *testing.T) {
	r := pool.NewPolicyRegistry()
	now := time.Unix(1_700_000_000, 0)
	p := r.Create(uuid.New(), 50, 100, now, time.Second, "eu-west")

	if err := r.MarkSettled(p.ID, 5000, 50); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if p.Status != pool.StatusSettled || p.PayoutRatioBps != 5000 || p.Payout != 50 {
		t.Error("settlement did not record ratio and payout")
	}

	if err := r.MarkSettled(p.ID, 5000, 50); err == nil {
		t.Error("second settle should fail")
	}
}

func TestPolicyRegistry_MarkSettledUnknown(t *testing.T) {
	r := pool.NewPolicyRegistry()
	if err := r.MarkSettled(99, 5000, 0); err == nil {
		t.Error("settling an unknown id should fail")
	}
}

func TestPolicyStatus_Transitions(t *testing.T) {
	if !pool.StatusActive.CanTransitionTo(pool.StatusSettled) {
		t.Error("Active → Settled must be allowed")
	}
	if pool.StatusSettled.CanTransitionTo(pool.StatusActive) {
		t.Error("Settled → Active must be forbidden")
	}
	if pool.StatusSettled.CanTransitionTo(pool.StatusSettled) {
		t.Error("Settled → Settled must be forbidden")
	}
}

func TestPolicyRegistry_RevertRestoresActive(t *testing.T) {
	r := pool.NewPolicyRegistry()
	now := time.Unix(1_700_000_000, 0)
	p := r.Create(uuid.New(), 50, 100, now, time.Second, "eu-west")

	if err := r.MarkSettled(p.ID, 5000, 50); err != nil {
		t.Fatalf("settle: %v", err)
	}
	r.Revert(p.ID)

	if p.Status != pool.StatusActive || p.PayoutRatioBps != 0 || p.Payout != 0 {
		t.Error("revert should restore the unsettled record")
	}
	if err := r.MarkSettled(p.ID, 4000, 40); err != nil {
		t.Errorf("settle after revert: %v", err)
	}
}

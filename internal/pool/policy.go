package pool

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PolicyStatus is the two-state policy lifecycle. A policy starts Active
// and moves to Settled exactly once; there is no path back.
type PolicyStatus int32

const (
	StatusActive PolicyStatus = iota
	StatusSettled
)

func (s PolicyStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusSettled:
		return "Settled"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates lifecycle transitions.
func (s PolicyStatus) CanTransitionTo(next PolicyStatus) bool {
	return s == StatusActive && next == StatusSettled
}

// Policy is a recorded coverage obligation. Records are created by
// purchase, mutated exactly once by settlement, and never deleted.
type Policy struct {
	ID             uint64
	Owner          uuid.UUID
	Premium        int64
	MaxPayout      int64
	StartTime      time.Time
	EndTime        time.Time
	PayoutRatioBps int64 // Set once, at settlement
	Payout         int64 // Actual amount paid (post-cap), set at settlement
	Status         PolicyStatus
	Region         string
}

// Matured reports whether the coverage window has ended.
func (p *Policy) Matured(now time.Time) bool {
	return !now.Before(p.EndTime)
}

// PolicyRegistry maps policy ids to records. Ids come from a monotonic
// counter starting at 1 and are never reused.
type PolicyRegistry struct {
	policies map[uint64]*Policy
	nextID   uint64
}

func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		policies: make(map[uint64]*Policy),
		nextID:   1,
	}
}

// Create allocates an id and stores a new Active policy.
// endTime > startTime is guaranteed because duration is validated positive
// by the caller.
func (r *PolicyRegistry) Create(owner uuid.UUID, premium, maxPayout int64, start time.Time, duration time.Duration, region string) *Policy {
	p := &Policy{
		ID:        r.nextID,
		Owner:     owner,
		Premium:   premium,
		MaxPayout: maxPayout,
		StartTime: start,
		EndTime:   start.Add(duration),
		Status:    StatusActive,
		Region:    region,
	}
	r.policies[p.ID] = p
	r.nextID++
	return p
}

// Insert stores a policy under its recorded id and advances the counter
// past it. Used by event-log replay, where ids were already allocated.
func (r *PolicyRegistry) Insert(p *Policy) {
	r.policies[p.ID] = p
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
}

// Get returns the policy record, or nil if the id was never allocated.
func (r *PolicyRegistry) Get(id uint64) *Policy {
	return r.policies[id]
}

// MarkSettled transitions a policy to Settled and records the applied
// ratio and payout. The ratio is recorded even when the payout capped to
// zero. Fails if the policy is already settled.
func (r *PolicyRegistry) MarkSettled(id uint64, ratioBps, payout int64) error {
	p := r.policies[id]
	if p == nil {
		return fmt.Errorf("policy %d not found", id)
	}
	if !p.Status.CanTransitionTo(StatusSettled) {
		return fmt.Errorf("policy %d is %s, cannot settle", id, p.Status)
	}
	p.Status = StatusSettled
	p.PayoutRatioBps = ratioBps
	p.Payout = payout
	return nil
}

// Revert undoes a settlement mutation in-place. Only the engine calls this,
// on a failed outbound push, before the settlement is observable.
func (r *PolicyRegistry) Revert(id uint64) {
	p := r.policies[id]
	if p == nil {
		return
	}
	p.Status = StatusActive
	p.PayoutRatioBps = 0
	p.Payout = 0
}

// Count returns how many policies have been created.
func (r *PolicyRegistry) Count() int {
	return len(r.policies)
}

// NextID returns the next id the registry will allocate.
func (r *PolicyRegistry) NextID() uint64 {
	return r.nextID
}

// All returns every policy record. Callers must not mutate them.
func (r *PolicyRegistry) All() []*Policy {
	out := make([]*Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	return out
}

// Restore replaces the registry contents. Used on warm restart.
func (r *PolicyRegistry) Restore(policies []*Policy, nextID uint64) {
	r.policies = make(map[uint64]*Policy, len(policies))
	for _, p := range policies {
		r.policies[p.ID] = p
	}
	if nextID < 1 {
		nextID = 1
	}
	r.nextID = nextID
}

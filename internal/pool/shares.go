package pool

import (
	"fmt"

	"github.com/google/uuid"
)

// ShareRegistry maintains per-account LP share balances and the running
// total. Shares are minted on deposit and burned on withdrawal; they are
// never transferred between accounts.
type ShareRegistry struct {
	balances map[uuid.UUID]int64
	total    int64
}

func NewShareRegistry() *ShareRegistry {
	return &ShareRegistry{
		balances: make(map[uuid.UUID]int64),
	}
}

// Mint credits shares to an account. Accounts are created implicitly on
// first mint. A zero mint is a no-op (rounding-loss deposits mint nothing).
func (r *ShareRegistry) Mint(account uuid.UUID, shares int64) {
	if shares < 0 {
		panic(fmt.Sprintf("FATAL: negative share mint: %d", shares))
	}
	if shares == 0 {
		return
	}
	r.balances[account] += shares
	r.total += shares
}

// Burn debits shares from an account. Fails if the account holds fewer
// shares than requested; on failure nothing is mutated.
func (r *ShareRegistry) Burn(account uuid.UUID, shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("burn amount must be positive: %d", shares)
	}
	balance := r.balances[account]
	if balance < shares {
		return fmt.Errorf("account %s holds %d shares, cannot burn %d", account, balance, shares)
	}
	if balance == shares {
		// Zero balances are dropped; implicit destruction per lifecycle.
		delete(r.balances, account)
	} else {
		r.balances[account] = balance - shares
	}
	r.total -= shares
	return nil
}

// Balance returns an account's share balance (zero for unknown accounts).
func (r *ShareRegistry) Balance(account uuid.UUID) int64 {
	return r.balances[account]
}

// Total returns the total outstanding shares.
func (r *ShareRegistry) Total() int64 {
	return r.total
}

// ValidateTotal verifies total == Σ per-account balances.
func (r *ShareRegistry) ValidateTotal() error {
	var sum int64
	for _, b := range r.balances {
		sum += b
	}
	if sum != r.total {
		return fmt.Errorf("share total %d does not match balance sum %d", r.total, sum)
	}
	return nil
}

// Snapshot returns a copy of all balances.
func (r *ShareRegistry) Snapshot() map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(r.balances))
	for k, v := range r.balances {
		out[k] = v
	}
	return out
}

// Restore replaces the registry contents. Used on warm restart.
func (r *ShareRegistry) Restore(balances map[uuid.UUID]int64) {
	r.balances = make(map[uuid.UUID]int64, len(balances))
	r.total = 0
	for k, v := range balances {
		if v == 0 {
			continue
		}
		r.balances[k] = v
		r.total += v
	}
}

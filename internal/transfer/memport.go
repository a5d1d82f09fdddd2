package transfer

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Movement records a single completed transfer through a MemPort.
type Movement struct {
	Account uuid.UUID
	Amount  int64
	Inbound bool // true for Pull, false for Push
}

// MemPort is an in-memory Port for tests and the dev profile. It records
// every successful movement and supports programmable failure injection.
type MemPort struct {
	mu        sync.Mutex
	movements []Movement

	// FailPulls / FailPushes make the next N calls of that kind fail.
	failPulls  int
	failPushes int
}

func NewMemPort() *MemPort {
	return &MemPort{}
}

// FailNextPulls makes the next n Pull calls return ErrRejected.
func (p *MemPort) FailNextPulls(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPulls = n
}

// FailNextPushes makes the next n Push calls return ErrRejected.
func (p *MemPort) FailNextPushes(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPushes = n
}

func (p *MemPort) Pull(ctx context.Context, account uuid.UUID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPulls > 0 {
		p.failPulls--
		return ErrRejected
	}
	p.movements = append(p.movements, Movement{Account: account, Amount: amount, Inbound: true})
	return nil
}

func (p *MemPort) Push(ctx context.Context, account uuid.UUID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPushes > 0 {
		p.failPushes--
		return ErrRejected
	}
	p.movements = append(p.movements, Movement{Account: account, Amount: amount, Inbound: false})
	return nil
}

// Movements returns a copy of all recorded movements in order.
func (p *MemPort) Movements() []Movement {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Movement, len(p.movements))
	copy(out, p.movements)
	return out
}

// NetFlow returns total pulled minus total pushed.
func (p *MemPort) NetFlow() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var net int64
	for _, m := range p.movements {
		if m.Inbound {
			net += m.Amount
		} else {
			net -= m.Amount
		}
	}
	return net
}

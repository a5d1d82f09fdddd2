// Package gate implements the access-control capability the engine
// consumes before privileged operations. The pause flag itself lives in
// the engine; this package only answers "may this caller do that".
package gate

import (
	"errors"
	"fmt"
)

// Operation names a privileged engine operation.
type Operation string

const (
	OpSettle          Operation = "settle"
	OpSetReserveRatio Operation = "set_reserve_ratio"
	OpPause           Operation = "pause"
)

// ErrUnauthorized is returned when a principal lacks the capability for
// an operation.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is an authenticated caller with a set of capabilities.
type Principal struct {
	Subject      string
	Capabilities []string
}

// Can reports whether the principal holds a capability.
func (p Principal) Can(op Operation) bool {
	for _, c := range p.Capabilities {
		if c == string(op) {
			return true
		}
	}
	return false
}

// Gate authorizes privileged operations.
type Gate interface {
	Authorize(p Principal, op Operation) error
}

// CapabilityGate authorizes purely from the principal's capability list.
type CapabilityGate struct{}

func NewCapabilityGate() *CapabilityGate {
	return &CapabilityGate{}
}

func (g *CapabilityGate) Authorize(p Principal, op Operation) error {
	if !p.Can(op) {
		return fmt.Errorf("%w: %s cannot %s", ErrUnauthorized, p.Subject, op)
	}
	return nil
}

package event

import (
	"time"
)

// EventType discriminator for outbound event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDepositCompleted
	EventTypePolicyCreated
	EventTypePolicySettled
	EventTypeWithdrawalCompleted
	EventTypePauseToggled
	EventTypeReserveRatioChanged
)

func (et EventType) String() string {
	switch et {
	case EventTypeDepositCompleted:
		return "DepositCompleted"
	case EventTypePolicyCreated:
		return "PolicyCreated"
	case EventTypePolicySettled:
		return "PolicySettled"
	case EventTypeWithdrawalCompleted:
		return "WithdrawalCompleted"
	case EventTypePauseToggled:
		return "PauseToggled"
	case EventTypeReserveRatioChanged:
		return "ReserveRatioChanged"
	default:
		return "Unknown"
	}
}

// ParseEventType maps a stored type name back to its discriminator.
func ParseEventType(s string) EventType {
	switch s {
	case "DepositCompleted":
		return EventTypeDepositCompleted
	case "PolicyCreated":
		return EventTypePolicyCreated
	case "PolicySettled":
		return EventTypePolicySettled
	case "WithdrawalCompleted":
		return EventTypeWithdrawalCompleted
	case "PauseToggled":
		return EventTypePauseToggled
	case "ReserveRatioChanged":
		return EventTypeReserveRatioChanged
	default:
		return EventTypeUnknown
	}
}

// Envelope wraps every event the engine emits.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Event type discriminator
	EventType EventType

	// Engine clock at commit time
	Timestamp time.Time
}

// Event is the interface all outbound event payloads implement.
type Event interface {
	EventType() EventType
}

package engine

import (
	"errors"

	"RiskPool/internal/gate"
)

var (
	// ErrInvalidAmount rejects non-positive deposit, premium, payout, or
	// share amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDuration rejects non-positive coverage durations.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidRatio rejects basis-point ratios outside [0, 10000].
	ErrInvalidRatio = errors.New("invalid ratio")

	// ErrUnauthorized is the gate's sentinel, re-exported so callers can
	// match engine errors without importing the gate package.
	ErrUnauthorized = gate.ErrUnauthorized

	// ErrPaused rejects mutating operations while the pool is halted.
	ErrPaused = errors.New("pool is paused")

	// ErrTransferFailed means the value-transfer port refused or failed the
	// movement. Engine state is unchanged when it is returned.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrInsufficientShares rejects withdrawals larger than the account's
	// share balance.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInsufficientAvailableLiquidity rejects withdrawals whose
	// entitlement floors to zero after the reserve buffer is applied.
	ErrInsufficientAvailableLiquidity = errors.New("insufficient available liquidity")
)

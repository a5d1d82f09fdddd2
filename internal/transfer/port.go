// Package transfer defines the value-transfer port: the boundary through
// which the pool moves value in and out. The engine owns no custody logic;
// it only observes definite success or failure per call.
package transfer

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRejected is returned when the external custody side refuses or fails
// a transfer. The engine treats any Port error as "no value moved".
var ErrRejected = errors.New("transfer rejected")

// Port moves value between an external account and the pool. Both calls
// are synchronous: they return only after the transfer has definitely
// succeeded or definitely failed, and a returned error means no value
// moved.
type Port interface {
	// Pull draws amount from the account into the pool.
	Pull(ctx context.Context, account uuid.UUID, amount int64) error

	// Push sends amount from the pool to the account.
	Push(ctx context.Context, account uuid.UUID, amount int64) error
}

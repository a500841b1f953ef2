package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidTransaction matches every InvalidTransactionError via errors.Is.
var ErrInvalidTransaction = errors.New("invalid transaction")

// ErrUnknownAccount is returned when a dispute, resolve or chargeback
// targets a client that has no account.
var ErrUnknownAccount = errors.New("account not found")

// InvalidTransactionError describes why a record was rejected before it
// reached an account.
type InvalidTransactionError struct {
	Reason string
}

func (e InvalidTransactionError) Error() string {
	return fmt.Sprintf("invalid transaction: %s", e.Reason)
}

// Is reports whether target is ErrInvalidTransaction.
func (e InvalidTransactionError) Is(target error) bool {
	return target == ErrInvalidTransaction
}

func invalid(format string, args ...any) error {
	return InvalidTransactionError{Reason: fmt.Sprintf(format, args...)}
}

package bhtree

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every error New returns for a bad Config.
	ErrInvalidConfig = errors.New("bhtree: invalid config")
	// ErrIndexOutOfRange reports an external point index that is not stored.
	ErrIndexOutOfRange = errors.New("bhtree: index out of range")
	// ErrDimensionMismatch reports coordinates whose length differs from the tree's.
	ErrDimensionMismatch = errors.New("bhtree: dimension mismatch")
	// ErrNonFinite reports a NaN or infinite coordinate.
	ErrNonFinite = errors.New("bhtree: non-finite coordinate")
	// ErrCorrupt is wrapped by Validate when an invariant does not hold.
	ErrCorrupt = errors.New("bhtree: corrupt tree")
)

// InvariantError is the panic value raised when the tree detects numeric
// corruption or a broken structural invariant. Neither is recoverable: the
// tree's aggregates or links can no longer be trusted.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("bhtree: %s: %s", e.Op, e.Msg)
}

func invariantf(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

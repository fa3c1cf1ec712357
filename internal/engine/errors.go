package engine

import (
	"errors"
	"fmt"
)

// LedgerWriteError reports that an operation computed its outcome but the
// audit record could not be durably appended. The record is parked for
// replay; the outcome returned alongside this error is still valid, its
// Recorded flag is false.
type LedgerWriteError struct {
	Action   string
	EntityID string
	Err      error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("engine: audit write for %s on %q failed: %v", e.Action, e.EntityID, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

// IsLedgerWrite reports whether err is, or wraps, a LedgerWriteError.
// Callers use it to tell "computed but not durably recorded" apart from a
// failed operation.
func IsLedgerWrite(err error) bool {
	var lwe *LedgerWriteError
	return errors.As(err, &lwe)
}

// Package fault defines the error taxonomy shared by all engines. Callers
// classify failures with errors.Is; wrapped context never hides the sentinel.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel errors for business-rule and invariant failures.
var (
	// ErrNotFound means a referenced account, item or entry does not exist.
	ErrNotFound = errors.New("greybooks: not found")

	// ErrDuplicateName means a name that must be unique is already taken.
	ErrDuplicateName = errors.New("greybooks: duplicate name")

	// ErrTypeLocked means an account's type cannot change because ledger
	// lines already reference the account.
	ErrTypeLocked = errors.New("greybooks: account type locked")

	// ErrUnbalancedEntry means debits and credits of an entry do not match.
	ErrUnbalancedEntry = errors.New("greybooks: unbalanced entry")

	// ErrInsufficientStock means a movement would drive an item's on-hand
	// quantity negative.
	ErrInsufficientStock = errors.New("greybooks: insufficient stock")

	// ErrAlreadyReversed means the entry has already been reversed once.
	ErrAlreadyReversed = errors.New("greybooks: entry already reversed")

	// ErrQuantityMismatch means an item's cached quantity disagrees with the
	// sum of its recorded movements.
	ErrQuantityMismatch = errors.New("greybooks: cached quantity mismatch")

	// ErrTransient marks a storage fault that is safe to retry. The
	// consistency supervisor retries these a bounded number of times.
	ErrTransient = errors.New("greybooks: transient failure")
)

// ValidationError describes malformed input, rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) ValidationError {
	return ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds while the
// original cause stays inspectable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

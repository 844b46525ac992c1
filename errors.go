package bits

import (
	"errors"
	"fmt"

	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/store"
)

// Sentinel errors for common failure scenarios.
var (
	// Validation errors
	ErrInvalidAmount  = errors.New("bits: amount must be positive")
	ErrSelfTransfer   = errors.New("bits: cannot transfer to self")
	ErrInvalidAccount = errors.New("bits: invalid account name")
	ErrInvalidCycle   = errors.New("bits: invalid subscription cycle")
	ErrUnknownCommand = errors.New("bits: unknown command")

	// Funds errors
	ErrInsufficientFunds = errors.New("bits: insufficient funds")

	// Authorization errors
	ErrNotHolder  = errors.New("bits: actor does not hold the required position")
	ErrNotMember  = errors.New("bits: actor is not a company member")
	ErrForbidden  = errors.New("bits: forbidden")
	ErrNotStarted = errors.New("bits: engine not started")

	// Company errors
	ErrCompanyExists   = errors.New("bits: company already exists")
	ErrCompanyNotFound = errors.New("bits: company not found")
	ErrAlreadyMember   = errors.New("bits: user is already a member")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("bits: subscription not found")

	// Governance errors
	ErrAlreadyVoted = fmt.Errorf("bits: %w", governance.ErrAlreadyVoted)

	// Rate limiter errors
	ErrUnknownModel = errors.New("bits: unknown model")
	ErrRateLimited  = errors.New("bits: rate limited")

	// Translator errors
	ErrTranslatorUnavailable = errors.New("bits: no translator configured")

	// Integrity errors
	ErrIntegrityAnomaly = errors.New("bits: balance inflation detected")
	ErrBackupDisabled   = errors.New("bits: backup directory not configured")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("bits: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "bits: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("bits: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Err returns nil when nothing was collected, else e.
func (e MultiError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// IsValidation returns true if err was rejected before any mutation
// because of malformed input.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrInvalidAccount) ||
		errors.Is(err, ErrInvalidCycle) ||
		errors.Is(err, ErrUnknownCommand)
}

// IsAuthorization returns true if the actor was not allowed to perform the
// operation.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotHolder) ||
		errors.Is(err, ErrNotMember) ||
		errors.Is(err, ErrForbidden)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
//
// store.ErrConflict is not retryable: nested updates such as the
// transaction log append have already committed when it surfaces. Verify
// reconciles the balances.
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrLockTimeout) ||
		errors.Is(err, ErrRateLimited)
}

package membership

import (
	"errors"
	"fmt"
)

// Error kinds. Every rejected operation returns an error that matches
// exactly one of these with errors.Is.
var (
	ErrNotFound              = errors.New("membership: not found")
	ErrUnauthorized          = errors.New("membership: unauthorized")
	ErrInvalidRange          = errors.New("membership: value out of range")
	ErrInvalidAmount         = errors.New("membership: invalid amount")
	ErrInactive              = errors.New("membership: inactive")
	ErrInsufficientBalance   = errors.New("membership: insufficient balance")
	ErrInsufficientAllowance = errors.New("membership: insufficient allowance")
	ErrCapacityExceeded      = errors.New("membership: capacity exceeded")
	ErrAlreadyBooked         = errors.New("membership: already booked")
	ErrAlreadyRedeemed       = errors.New("membership: already redeemed")
	ErrAlreadyCheckedIn      = errors.New("membership: already checked in")
	ErrExpired               = errors.New("membership: expired")
	ErrWindowClosed          = errors.New("membership: window closed")
	ErrTooEarly              = errors.New("membership: too early")
	ErrCapacityConflict      = errors.New("membership: capacity conflict")
	ErrNotActive             = errors.New("membership: not active")
	ErrUnsupportedCurrency   = errors.New("membership: unsupported currency")

	// ErrIndexOutOfRange is a NotFound for a positional lookup.
	ErrIndexOutOfRange = fmt.Errorf("%w: index out of range", ErrNotFound)
)

// Entity-specific errors. Each wraps its kind.
var (
	ErrTemplateNotFound     = fmt.Errorf("%w: template", ErrNotFound)
	ErrAccountNotFound      = fmt.Errorf("%w: account", ErrNotFound)
	ErrMerchantNotFound     = fmt.Errorf("%w: merchant", ErrNotFound)
	ErrEventNotFound        = fmt.Errorf("%w: event", ErrNotFound)
	ErrBookingNotFound      = fmt.Errorf("%w: booking", ErrNotFound)
	ErrPairNotFound         = fmt.Errorf("%w: account/event pair", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)
	ErrBenefitNotFound      = fmt.Errorf("%w: benefit", ErrIndexOutOfRange)

	ErrTemplateExists   = fmt.Errorf("%w: template already exists", ErrInvalidRange)
	ErrTemplateInactive = fmt.Errorf("%w: template", ErrInactive)
	ErrEventInactive    = fmt.Errorf("%w: event", ErrInactive)
	ErrNoCaller         = fmt.Errorf("%w: no caller identity", ErrUnauthorized)
)

// Store errors.
var (
	ErrStoreClosed     = errors.New("membership: store is closed")
	ErrMigrationFailed = errors.New("membership: migration failed")
)

// Kind is the name of an error kind, suitable for surfacing to callers.
type Kind string

const (
	KindNone                  Kind = ""
	KindNotFound              Kind = "NotFound"
	KindIndexOutOfRange       Kind = "IndexOutOfRange"
	KindUnauthorized          Kind = "Unauthorized"
	KindInvalidRange          Kind = "InvalidRange"
	KindInvalidAmount         Kind = "InvalidAmount"
	KindInactive              Kind = "Inactive"
	KindNotActive             Kind = "NotActive"
	KindInsufficientBalance   Kind = "InsufficientBalance"
	KindInsufficientAllowance Kind = "InsufficientAllowance"
	KindUnsupportedCurrency   Kind = "UnsupportedCurrency"
	KindCapacityExceeded      Kind = "CapacityExceeded"
	KindAlreadyBooked         Kind = "AlreadyBooked"
	KindAlreadyRedeemed       Kind = "AlreadyRedeemed"
	KindAlreadyCheckedIn      Kind = "AlreadyCheckedIn"
	KindExpired               Kind = "Expired"
	KindWindowClosed          Kind = "WindowClosed"
	KindTooEarly              Kind = "TooEarly"
	KindCapacityConflict      Kind = "CapacityConflict"
	KindInternal              Kind = "Internal"
)

// kinds is ordered most specific first.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrIndexOutOfRange, KindIndexOutOfRange},
	{ErrNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidRange, KindInvalidRange},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInactive, KindInactive},
	{ErrNotActive, KindNotActive},
	{ErrInsufficientBalance, KindInsufficientBalance},
	{ErrInsufficientAllowance, KindInsufficientAllowance},
	{ErrUnsupportedCurrency, KindUnsupportedCurrency},
	{ErrCapacityExceeded, KindCapacityExceeded},
	{ErrAlreadyBooked, KindAlreadyBooked},
	{ErrAlreadyRedeemed, KindAlreadyRedeemed},
	{ErrAlreadyCheckedIn, KindAlreadyCheckedIn},
	{ErrExpired, KindExpired},
	{ErrWindowClosed, KindWindowClosed},
	{ErrTooEarly, KindTooEarly},
	{ErrCapacityConflict, KindCapacityConflict},
}

// KindOf maps err to its kind. Errors outside the taxonomy (store or
// context failures) are KindInternal; nil is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ValidationError represents a validation failure with details.
// It matches ErrInvalidRange.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("membership: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidRange) hold.
func (e ValidationError) Unwrap() error { return ErrInvalidRange }

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "membership: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("membership: %d errors occurred", len(e.Errors))
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

// ErrOrNil returns e if it holds errors and nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized returns true if the caller lacked a required capability.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRejected returns true if err is an ordinary rejected-operation
// outcome rather than an infrastructure failure.
func IsRejected(err error) bool {
	k := KindOf(err)
	return k != KindNone && k != KindInternal
}

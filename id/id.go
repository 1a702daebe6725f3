// Package id defines TypeID-based identity types for all membership entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type. IDs are K-sortable (UUIDv7-based), globally unique,
// and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all membership entity types.
const (
	PrefixTemplate     Prefix = "tmpl" // Membership template
	PrefixAccount      Prefix = "acct" // Minted membership account
	PrefixTransaction  Prefix = "txn"  // Account transaction log entry
	PrefixBenefit      Prefix = "bnf"  // Benefit grant
	PrefixEvent        Prefix = "evt"  // Bookable event
	PrefixBooking      Prefix = "bkg"  // Event booking
	PrefixNotification Prefix = "ntf"  // Outbox notification
)

// ID is the primary identifier type for all membership entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "acct_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// TemplateID identifies a membership template (prefix: "tmpl").
type TemplateID = ID

// AccountID identifies a minted account (prefix: "acct").
type AccountID = ID

// TransactionID identifies a transaction log entry (prefix: "txn").
type TransactionID = ID

// BenefitID identifies a benefit grant (prefix: "bnf").
type BenefitID = ID

// EventID identifies a bookable event (prefix: "evt").
type EventID = ID

// BookingID identifies a booking (prefix: "bkg").
type BookingID = ID

// NotificationID identifies an outbox notification (prefix: "ntf").
type NotificationID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewTemplateID generates a new unique template ID.
func NewTemplateID() ID { return New(PrefixTemplate) }

// NewAccountID generates a new unique account ID.
func NewAccountID() ID { return New(PrefixAccount) }

// NewTransactionID generates a new unique transaction ID.
func NewTransactionID() ID { return New(PrefixTransaction) }

// NewBenefitID generates a new unique benefit ID.
func NewBenefitID() ID { return New(PrefixBenefit) }

// NewEventID generates a new unique event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewBookingID generates a new unique booking ID.
func NewBookingID() ID { return New(PrefixBooking) }

// NewNotificationID generates a new unique notification ID.
func NewNotificationID() ID { return New(PrefixNotification) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseTemplateID parses a string and validates the "tmpl" prefix.
func ParseTemplateID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTemplate) }

// ParseAccountID parses a string and validates the "acct" prefix.
func ParseAccountID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAccount) }

// ParseTransactionID parses a string and validates the "txn" prefix.
func ParseTransactionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTransaction) }

// ParseBenefitID parses a string and validates the "bnf" prefix.
func ParseBenefitID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBenefit) }

// ParseEventID parses a string and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// ParseBookingID parses a string and validates the "bkg" prefix.
func ParseBookingID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBooking) }

// ParseNotificationID parses a string and validates the "ntf" prefix.
func ParseNotificationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixNotification) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// Compare orders IDs by their string form. Nil sorts first.
func (i ID) Compare(other ID) int {
	a, b := i.String(), other.String()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/membership/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"TemplateID", id.NewTemplateID, "tmpl_"},
		{"AccountID", id.NewAccountID, "acct_"},
		{"TransactionID", id.NewTransactionID, "txn_"},
		{"BenefitID", id.NewBenefitID, "bnf_"},
		{"EventID", id.NewEventID, "evt_"},
		{"BookingID", id.NewBookingID, "bkg_"},
		{"NotificationID", id.NewNotificationID, "ntf_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"TemplateID", id.NewTemplateID, id.ParseTemplateID},
		{"AccountID", id.NewAccountID, id.ParseAccountID},
		{"TransactionID", id.NewTransactionID, id.ParseTransactionID},
		{"BenefitID", id.NewBenefitID, id.ParseBenefitID},
		{"EventID", id.NewEventID, id.ParseEventID},
		{"BookingID", id.NewBookingID, id.ParseBookingID},
		{"NotificationID", id.NewNotificationID, id.ParseNotificationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseTemplateID rejects acct_", id.NewAccountID().String(), id.ParseTemplateID},
		{"ParseAccountID rejects evt_", id.NewEventID().String(), id.ParseAccountID},
		{"ParseEventID rejects bkg_", id.NewBookingID().String(), id.ParseEventID},
		{"ParseBookingID rejects bnf_", id.NewBenefitID().String(), id.ParseBookingID},
		{"ParseBenefitID rejects ntf_", id.NewNotificationID().String(), id.ParseBenefitID},
		{"ParseNotificationID rejects txn_", id.NewTransactionID().String(), id.ParseNotificationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestCompare(t *testing.T) {
	a := id.MustParse("tmpl_01h2xcejqtf2nbrexx3vqjhp41")
	b := id.MustParse("tmpl_01h2xcejqtf2nbrexx3vqjhp42")

	if a.Compare(b) != -1 {
		t.Errorf("Compare(a, b): got %d, want -1", a.Compare(b))
	}
	if b.Compare(a) != 1 {
		t.Errorf("Compare(b, a): got %d, want 1", b.Compare(a))
	}
	if a.Compare(a) != 0 {
		t.Errorf("Compare(a, a): got %d, want 0", a.Compare(a))
	}
	if id.Nil.Compare(a) != -1 {
		t.Error("Nil should sort before any valid ID")
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewAccountID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewBookingID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}
	if fromBytes.String() != original.String() {
		t.Errorf("mismatch: %q != %q", fromBytes.String(), original.String())
	}

	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewEventID()
	b := id.NewEventID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewEventID() calls returned the same ID: %q", a.String())
	}
}

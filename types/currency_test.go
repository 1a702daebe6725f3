package types

import (
	"math"
	"testing"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Currency
		wantErr bool
	}{
		{"empty is native", "", Native, false},
		{"native upper", "NATIVE", Native, false},
		{"native lower", "native", Native, false},
		{"token lowercased", "0xAbC123", Currency("0xabc123"), false},
		{"trimmed", "  usdc ", Currency("usdc"), false},
		{"inner space rejected", "us dc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCurrency(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCurrency(%q): got %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCurrencyIsNative(t *testing.T) {
	if !Currency("").IsNative() {
		t.Error("zero value should be native")
	}
	if !Native.IsNative() {
		t.Error("Native should be native")
	}
	if Currency("usdc").IsNative() {
		t.Error("usdc should not be native")
	}
	if Currency("").String() != "NATIVE" {
		t.Errorf("String: got %q, want NATIVE", Currency("").String())
	}
}

func TestAddAmount(t *testing.T) {
	tests := []struct {
		name   string
		a, b   int64
		want   int64
		wantOK bool
	}{
		{"simple", 2000, 500, 2500, true},
		{"negative", 2500, -2500, 0, true},
		{"overflow", math.MaxInt64, 1, 0, false},
		{"underflow", math.MinInt64, -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AddAmount(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("AddAmount(%d, %d): got %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

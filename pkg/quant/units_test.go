package quant

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals int32
		want     uint64
		wantErr  bool
	}{
		{"Integer", "100", 9, 100_000_000_000, false},
		{"Fraction", "1.5", 9, 1_500_000_000, false},
		{"Small Fraction", "0.000000001", 9, 1, false},
		{"Excess Precision Floored", "0.0000000019", 9, 1, false},
		{"Zero", "0", 9, 0, false},
		{"Zero Decimals", "42.9", 0, 42, false},
		{"Negative", "-1", 9, 0, true},
		{"Garbage", "1.2.3", 9, 0, true},
		{"Empty", "", 9, 0, true},
		{"Overflow", "99999999999999999999", 9, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAmountOverflowSentinel(t *testing.T) {
	_, err := ParseAmount("18446744073709551616", 0) // 2^64
	if !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("expected ErrAmountOverflow, got %v", err)
	}
	got, err := ParseAmount("18446744073709551615", 0) // 2^64 - 1
	if err != nil || got != 18446744073709551615 {
		t.Errorf("max uint64 should parse, got %d err %v", got, err)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(1_500_000_000, 9); got != "1.5" {
		t.Errorf("FormatAmount = %s, want 1.5", got)
	}
	if got := FormatAmount(0, 9); got != "0" {
		t.Errorf("FormatAmount = %s, want 0", got)
	}
}

func TestNextSeq(t *testing.T) {
	var seq uint64
	if got := NextSeq(&seq); got != 1 {
		t.Errorf("first NextSeq = %d, want 1", got)
	}
	if got := NextSeq(&seq); got != 2 {
		t.Errorf("second NextSeq = %d, want 2", got)
	}
}

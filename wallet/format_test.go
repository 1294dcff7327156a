package wallet

import (
	"math/big"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		in   string
		dec  uint8
		want string
	}{
		{"0", 18, "0.0"},
		{"1000000000000000000", 18, "1.0"},
		{"1500000000000000000", 18, "1.5"},
		{"1000000000000", 18, "0.000001"},
		{"-2500000", 6, "-2.5"},
		{"42", 0, "42.0"},
	}
	for _, tt := range tests {
		v, _ := new(big.Int).SetString(tt.in, 10)
		if got := FormatUnits(v, tt.dec); got != tt.want {
			t.Errorf("FormatUnits(%s, %d) = %q, want %q", tt.in, tt.dec, got, tt.want)
		}
	}

	if got := FormatUnits(nil, 18); got != "0.0" {
		t.Errorf("FormatUnits(nil) = %q", got)
	}
}

func TestParseUnits(t *testing.T) {
	v, ok := ParseUnits("10", 18)
	if !ok || v.String() != "10000000000000000000" {
		t.Fatalf("ParseUnits(10) = %v, %v", v, ok)
	}

	v, ok = ParseUnits(".25", 6)
	if !ok || v.String() != "250000" {
		t.Fatalf("ParseUnits(.25) = %v, %v", v, ok)
	}

	// extra precision is truncated
	v, ok = ParseUnits("1.1234567", 6)
	if !ok || v.String() != "1123456" {
		t.Fatalf("ParseUnits(1.1234567) = %v, %v", v, ok)
	}

	for _, bad := range []string{"", "abc", "1.2.3", "1e18"} {
		if _, ok := ParseUnits(bad, 18); ok {
			t.Errorf("ParseUnits(%q) should fail", bad)
		}
	}
}

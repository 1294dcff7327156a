package helpers

import (
	"image/color"
	"math/big"
	"testing"
	"time"
)

func TestShortenAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0x569C43c4Cb8e332037Bc02ae997177F35cd8a017", "0x569C…a017"},
		{"0x1234", "0x1234"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortenAddr(tt.in); got != tt.want {
			t.Errorf("ShortenAddr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidEthAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0x569C43c4Cb8e332037Bc02ae997177F35cd8a017", true},
		{" 0x569C43c4Cb8e332037Bc02ae997177F35cd8a017 ", true},
		{"569C43c4Cb8e332037Bc02ae997177F35cd8a017", false},
		{"0x569C43c4Cb8e332037Bc02ae997177F35cd8a01", false},
		{"0xZZ9C43c4Cb8e332037Bc02ae997177F35cd8a017", false},
		{"f410fabc", false},
	}
	for _, tt := range tests {
		if got := IsValidEthAddress(tt.in); got != tt.want {
			t.Errorf("IsValidEthAddress(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatting(t *testing.T) {
	t.Run("amount", func(t *testing.T) {
		wei, _ := new(big.Int).SetString("1500000000000000000", 10)
		if got := FormatAmount(wei, 18, "tFIL"); got != "1.5 tFIL" {
			t.Errorf("FormatAmount = %q", got)
		}
		if got := FormatAmount(nil, 18, "tFIL"); got != "0.0 tFIL" {
			t.Errorf("FormatAmount(nil) = %q", got)
		}
	})

	t.Run("token", func(t *testing.T) {
		v, _ := new(big.Int).SetString("12345678900000000000", 10)
		if got := FormatToken(v, 18, "USDFC"); got != "12.3457 USDFC" {
			t.Errorf("FormatToken = %q", got)
		}
		if got := FormatToken(nil, 18, "USDFC"); got != "0 USDFC" {
			t.Errorf("FormatToken(nil) = %q", got)
		}
	})

	t.Run("loaded at", func(t *testing.T) {
		if got := LoadedAt(time.Time{}, false); got != "never" {
			t.Errorf("LoadedAt(zero) = %q", got)
		}
		if got := LoadedAt(time.Now(), true); got != "loading…" {
			t.Errorf("LoadedAt(loading) = %q", got)
		}
		at := time.Date(2025, 1, 2, 13, 4, 5, 0, time.Local)
		if got := LoadedAt(at, false); got != "13:04:05" {
			t.Errorf("LoadedAt = %q", got)
		}
	})
}

func TestHyperlink(t *testing.T) {
	if got := Hyperlink("", "text"); got != "text" {
		t.Errorf("Hyperlink without url = %q", got)
	}
	want := "\x1b]8;;https://calibration.filfox.info\x1b\\filfox\x1b]8;;\x1b\\"
	if got := Hyperlink("https://calibration.filfox.info", "filfox"); got != want {
		t.Errorf("Hyperlink = %q", got)
	}
}

func TestMinMaxContains(t *testing.T) {
	if Max(2, 3) != 3 || Min(2, 3) != 2 {
		t.Error("Min/Max")
	}
	if !Contains([]string{"USDFC", "tFIL"}, "usdfc") {
		t.Error("Contains should ignore case")
	}
	if Contains(nil, "x") {
		t.Error("Contains(nil)")
	}
}

func TestToHex(t *testing.T) {
	if got := ToHex(color.RGBA{R: 0x7E, G: 0xE7, B: 0x87, A: 0xFF}); got != "#7EE787" {
		t.Errorf("ToHex = %q", got)
	}
}

func TestFadeStringEmpty(t *testing.T) {
	if FadeString("", "#7EE787", "#82CFFD") != "" {
		t.Error("FadeString of empty string should be empty")
	}
}

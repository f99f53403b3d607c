package output

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatCurrency(t *testing.T) {
	v := decimal.NewFromFloat(1234.567)
	got := FormatCurrency(v)
	want := "$1,234.57"
	if got != want {
		t.Errorf("FormatCurrency(%v) = %q, want %q", v, got, want)
	}
}

func TestFormatPercentage(t *testing.T) {
	v := decimal.NewFromFloat(12.3456)
	got := FormatPercentage(v)
	want := "12.35%"
	if got != want {
		t.Errorf("FormatPercentage(%v) = %q, want %q", v, got, want)
	}
	if got := FormatRate(decimal.NewFromFloat(0.07)); got != "7.00%" {
		t.Errorf("FormatRate(0.07) = %q", got)
	}
}

func TestAgeOrDash(t *testing.T) {
	if got := ageOrDash(nil); got != "-" {
		t.Errorf("ageOrDash(nil) = %q", got)
	}
	a := 88
	if got := ageOrDash(&a); got != "88" {
		t.Errorf("ageOrDash(88) = %q", got)
	}
}

package domain

import (
	"math/big"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		units    int64
		decimals int
		want     string
	}{
		{1_500_000, 6, "1.5"},
		{100_000_000, 6, "100"},
		{1, 8, "0.00000001"},
		{0, 6, "0"},
		{-2_500_000, 6, "-2.5"},
	}
	for _, tt := range tests {
		if got := FormatUnits(big.NewInt(tt.units), tt.decimals); got != tt.want {
			t.Errorf("FormatUnits(%d, %d) = %s, want %s", tt.units, tt.decimals, got, tt.want)
		}
	}
}

func TestFormatUnitsBeyondInt64(t *testing.T) {
	units := new(big.Int).Mul(big.NewInt(1<<62), big.NewInt(100_000_000))
	want := "4611686018427387904"
	if got := FormatUnits(units, 8); got != want {
		t.Errorf("FormatUnits = %s, want %s", got, want)
	}
}

func TestRateDecimal(t *testing.T) {
	if got := RateDecimal(250_000_000, 8).String(); got != "2.5" {
		t.Errorf("RateDecimal = %s, want 2.5", got)
	}
	if got := RateDecimal(0, 8).String(); got != "0" {
		t.Errorf("RateDecimal = %s, want 0", got)
	}
}

func TestExchangeRateIsPositive(t *testing.T) {
	if !ExchangeRate(1).IsPositive() {
		t.Error("1 should be positive")
	}
	if ExchangeRate(0).IsPositive() || ExchangeRate(-1).IsPositive() {
		t.Error("0 and -1 should not be positive")
	}
}

func TestUnitRefString(t *testing.T) {
	ref := UnitRef{Class: "nft-1", Serial: 42}
	if got := ref.String(); got != "nft-1/42" {
		t.Errorf("String = %s, want nft-1/42", got)
	}
}

package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the native coin's USD price as reported by the oracle,
// a signed integer with implied decimals (RateDecimals in config). The
// adapter returns it as-is; consumers reject non-positive values.
type ExchangeRate int64

// IsPositive reports whether the rate can be used for a quote.
func (r ExchangeRate) IsPositive() bool { return r > 0 }

// FormatUnits renders an integer amount of minor units as a decimal string,
// e.g. FormatUnits(big.NewInt(1_500_000), 6) == "1.5".
func FormatUnits(units *big.Int, decimals int) string {
	d := decimal.NewFromBigInt(units, -int32(decimals))
	return d.String()
}

// FormatStable renders a stable-token minor-unit amount for display.
func FormatStable(units int64, decimals int) string {
	return FormatUnits(big.NewInt(units), decimals)
}

// RateDecimal renders an exchange rate for display at the given implied scale.
func RateDecimal(rate ExchangeRate, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(big.NewInt(int64(rate)), -int32(decimals))
}

// Package pricing converts the fixed stable-token price into the native
// currency amount required at purchase time.
package pricing

import (
	"errors"
	"math/big"

	"github.com/mtlprog/sale/internal/domain"
)

// ErrInvalidRate indicates a non-positive oracle rate; no native-currency
// quote can be produced for the call.
var ErrInvalidRate = errors.New("oracle rate is not positive")

// Converter computes native-currency quotes from stable-token prices.
//
// The required amount is stableUnits * 10^(nativeDecimals - stableDecimals +
// rateDecimals) / rate, with the division truncating toward zero. All three
// decimal counts come from configuration so that a differently-scaled stable
// token cannot silently corrupt quotes.
type Converter struct {
	scale *big.Int
}

// NewConverter derives the scaling factor once from the configured decimal
// counts. With the default deployment values (stable 6, native 8, rate 8)
// the factor is 10^10.
func NewConverter(stableDecimals, nativeDecimals, rateDecimals int) *Converter {
	exp := int64(nativeDecimals - stableDecimals + rateDecimals)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
	return &Converter{scale: scale}
}

// QuoteNativeAmount returns the native minor-unit amount equivalent to
// stableUnits at the given rate. The result is exact integer arithmetic;
// the only rounding is the final truncate-toward-zero division.
func (c *Converter) QuoteNativeAmount(stableUnits int64, rate domain.ExchangeRate) (*big.Int, error) {
	if !rate.IsPositive() {
		return nil, ErrInvalidRate
	}
	scaled := new(big.Int).Mul(big.NewInt(stableUnits), c.scale)
	return scaled.Quo(scaled, big.NewInt(int64(rate))), nil
}

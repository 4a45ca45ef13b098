// Package fixed converts between raw on-chain integer amounts and decimal units.
package fixed

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DivPrecision is the number of fractional digits kept by Div.
const DivPrecision = 34

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

// ScaleDown divides raw by 10^decimals without rounding.
func ScaleDown(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	if decimals < 0 {
		decimals = 0
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// TokenToDecimal is ScaleDown at vault amount boundaries.
func TokenToDecimal(raw *big.Int, decimals int) decimal.Decimal {
	return ScaleDown(raw, decimals)
}

// ScaleUp multiplies d by 10^decimals and truncates toward zero.
func ScaleUp(d decimal.Decimal, decimals int) *big.Int {
	if decimals < 0 {
		decimals = 0
	}
	return d.Shift(int32(decimals)).BigInt()
}

// Div returns a/b rounded to DivPrecision digits, or zero when b is zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivPrecision)
}

// OrZero unwraps an optional decimal.
func OrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// Some wraps d as a present optional decimal.
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// BigOrZero returns v, or a new zero when v is nil.
func BigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

package fixed

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestScaleRoundTrip(t *testing.T) {
	raws := []string{"0", "1", "999999", "1000000000000000000", "-42", "115792089237316195423570985008687907853269984665640564039457584007913129639935"}
	for _, s := range raws {
		raw, _ := new(big.Int).SetString(s, 10)
		for _, dec := range []int{0, 6, 8, 18, 38} {
			got := ScaleUp(ScaleDown(raw, dec), dec)
			require.Zerof(t, got.Cmp(raw), "round trip %s at %d decimals gave %s", s, dec, got)
		}
	}
}

func TestScaleDown(t *testing.T) {
	raw, _ := new(big.Int).SetString("2000000000", 10)
	require.True(t, ScaleDown(raw, 6).Equal(decimal.NewFromInt(2000)))
	require.True(t, TokenToDecimal(big.NewInt(5), 1).Equal(decimal.RequireFromString("0.5")))
	require.True(t, ScaleDown(nil, 18).IsZero())
}

func TestScaleUpTruncates(t *testing.T) {
	d := decimal.RequireFromString("1.2345678")
	require.Equal(t, "1234567", ScaleUp(d, 6).String())
	require.Equal(t, "-1234567", ScaleUp(d.Neg(), 6).String())

	// re-scaling a coarser value loses at most one unit of the smallest increment
	back := ScaleDown(ScaleUp(d, 6), 6)
	require.True(t, d.Sub(back).Abs().LessThanOrEqual(decimal.New(1, -6)))
}

func TestDivGuardsZero(t *testing.T) {
	require.True(t, Div(decimal.NewFromInt(1), decimal.Zero).IsZero())
	require.Equal(t, "0.5", Div(decimal.NewFromInt(1), decimal.NewFromInt(2)).String())
}

func TestOrZero(t *testing.T) {
	require.True(t, OrZero(decimal.NullDecimal{}).IsZero())
	require.True(t, OrZero(Some(decimal.NewFromInt(3))).Equal(decimal.NewFromInt(3)))
}

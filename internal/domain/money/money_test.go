package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMinorUnitRoundTrip(t *testing.T) {
	require.Equal(t, int64(5000), ToMinor(decimal.NewFromInt(50)))
	require.Equal(t, int64(1234), ToMinor(decimal.NewFromFloat(12.34)))
	require.True(t, decimal.NewFromFloat(50.00).Equal(FromMinor(5000)))
	require.True(t, decimal.NewFromFloat(0.01).Equal(FromMinor(1)))

	amount := decimal.NewFromFloat(165.00)
	require.True(t, amount.Equal(FromMinor(ToMinor(amount))))
}

func TestPercentRoundsToTwoPlaces(t *testing.T) {
	got := Percent(decimal.NewFromInt(100), decimal.NewFromInt(15))
	require.True(t, decimal.NewFromInt(15).Equal(got))

	got = Percent(decimal.NewFromFloat(33.33), decimal.NewFromInt(10))
	require.True(t, decimal.NewFromFloat(3.33).Equal(got))
}

func TestSignHelpers(t *testing.T) {
	require.True(t, IsPositive(decimal.NewFromInt(1)))
	require.False(t, IsPositive(Zero()))
	require.True(t, IsNegative(decimal.NewFromInt(-1)))
	require.False(t, IsNegative(Zero()))
}

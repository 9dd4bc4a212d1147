package pricemath

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqrtAt(t *testing.T, tick int) *uint256.Int {
	t.Helper()
	s, err := SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return s
}

func TestAmountsForLiquiditySingleSided(t *testing.T) {
	sqrtA := sqrtAt(t, -1000)
	sqrtB := sqrtAt(t, 1000)
	liq := uint256.NewInt(1_000_000_000)

	// Price below the range: the position holds only token0.
	below := sqrtAt(t, -2000)
	a0, a1, err := AmountsForLiquidity(below, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	assert.False(t, a0.IsZero())
	assert.True(t, a1.IsZero())

	// Price above the range: only token1.
	above := sqrtAt(t, 2000)
	a0, a1, err = AmountsForLiquidity(above, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	assert.True(t, a0.IsZero())
	assert.False(t, a1.IsZero())
}

func TestAmountsForLiquidityInRange(t *testing.T) {
	sqrtA := sqrtAt(t, -1000)
	sqrtB := sqrtAt(t, 1000)
	mid := sqrtAt(t, 0)
	liq := uint256.NewInt(1_000_000_000)

	a0, a1, err := AmountsForLiquidity(mid, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	assert.False(t, a0.IsZero())
	assert.False(t, a1.IsZero())

	// The mixed amounts are the two sub-range single-sided amounts.
	want0, err := Amount0ForLiquidity(mid, sqrtB, liq)
	require.NoError(t, err)
	want1, err := Amount1ForLiquidity(sqrtA, mid, liq)
	require.NoError(t, err)
	assert.Equal(t, want0.Dec(), a0.Dec())
	assert.Equal(t, want1.Dec(), a1.Dec())
}

func TestAmountsForLiquidityBoundaries(t *testing.T) {
	sqrtA := sqrtAt(t, -1000)
	sqrtB := sqrtAt(t, 1000)
	liq := uint256.NewInt(1_000_000_000)

	// Exactly at the lower bound counts as below.
	a0, a1, err := AmountsForLiquidity(sqrtA, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	assert.False(t, a0.IsZero())
	assert.True(t, a1.IsZero())

	// Exactly at the upper bound counts as above.
	a0, a1, err = AmountsForLiquidity(sqrtB, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	assert.True(t, a0.IsZero())
	assert.False(t, a1.IsZero())
}

// Converting liquidity to a token amount and back must never create
// liquidity: truncation only loses.
func TestProperty_LiquidityAmountRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	tickGen := gen.IntRange(-200000, 200000)
	widthGen := gen.IntRange(1, 2000)
	liqGen := gen.UInt64Range(1_000_000, 1<<60)

	properties.Property("amount0 round trip never inflates", prop.ForAll(
		func(lower, width int, liq uint64) bool {
			sqrtA, err := SqrtRatioAtTick(lower)
			if err != nil {
				return false
			}
			sqrtB, err := SqrtRatioAtTick(lower + width)
			if err != nil {
				return false
			}
			l := uint256.NewInt(liq)
			amt, err := Amount0ForLiquidity(sqrtA, sqrtB, l)
			if err != nil {
				return false
			}
			back, err := LiquidityForAmount0(sqrtA, sqrtB, amt)
			if err != nil {
				return false
			}
			return !back.Gt(l)
		},
		tickGen, widthGen, liqGen,
	))

	properties.Property("amount1 round trip never inflates", prop.ForAll(
		func(lower, width int, liq uint64) bool {
			sqrtA, err := SqrtRatioAtTick(lower)
			if err != nil {
				return false
			}
			sqrtB, err := SqrtRatioAtTick(lower + width)
			if err != nil {
				return false
			}
			l := uint256.NewInt(liq)
			amt, err := Amount1ForLiquidity(sqrtA, sqrtB, l)
			if err != nil {
				return false
			}
			back, err := LiquidityForAmount1(sqrtA, sqrtB, amt)
			if err != nil {
				return false
			}
			return !back.Gt(l)
		},
		tickGen, widthGen, liqGen,
	))

	properties.TestingRun(t)
}

package pricemath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceFromSqrtX96AtParity(t *testing.T) {
	// sqrt price of exactly 1.0: both orientations read 10^decimals.
	sqrt := new(uint256.Int).Set(Q96)

	p, err := PriceFromSqrtX96(sqrt, 6, true)
	require.NoError(t, err)
	assert.Equal(t, "1000000", p.Dec())

	p, err = PriceFromSqrtX96(sqrt, 6, false)
	require.NoError(t, err)
	assert.Equal(t, "1000000", p.Dec())
}

func TestPriceFromSqrtX96KnownRatio(t *testing.T) {
	// sqrt price 2 << 96 means token1/token0 = 4.
	sqrt := new(uint256.Int).Lsh(uint256.NewInt(2), 96)

	p, err := PriceFromSqrtX96(sqrt, 6, true)
	require.NoError(t, err)
	assert.Equal(t, "4000000", p.Dec())

	// Inverted orientation reads 1/4.
	p, err = PriceFromSqrtX96(sqrt, 6, false)
	require.NoError(t, err)
	assert.Equal(t, "250000", p.Dec())
}

func TestPriceFromSqrtX96WideBranch(t *testing.T) {
	// A sqrt price above 128 bits takes the pre-shifted path.
	// 2^130 >> 96 squared is 2^68.
	sqrt := new(uint256.Int).Lsh(uint256.NewInt(1), 130)

	p, err := PriceFromSqrtX96(sqrt, 0, true)
	require.NoError(t, err)
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 68)
	assert.Equal(t, want.Dec(), p.Dec())
}

func TestPriceFromSqrtX96Zero(t *testing.T) {
	_, err := PriceFromSqrtX96(new(uint256.Int), 6, true)
	assert.ErrorIs(t, err, ErrDivByZero)
}

func TestPriceAtTickOrientation(t *testing.T) {
	// At a positive tick token1/token0 exceeds 1, so the tick reads
	// above parity when the call asset is token0 and below otherwise.
	above, err := PriceAtTick(10000, 6, true)
	require.NoError(t, err)
	below, err := PriceAtTick(10000, 6, false)
	require.NoError(t, err)

	parity := Pow10(6)
	assert.True(t, above.Gt(parity), "got %s", above.Dec())
	assert.True(t, below.Lt(parity), "got %s", below.Dec())

	// The two orientations are reciprocal up to rounding.
	product, err := MulDiv(above, below, Pow10(6))
	require.NoError(t, err)
	diff := new(uint256.Int).Sub(parity, product)
	assert.True(t, diff.LtUint64(10_000), "product %s", product.Dec())
}

package market

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/pricemath"
)

func testWorld(t *testing.T, priceTick int) (*SimLedger, *SimRegistry) {
	t.Helper()
	ledger := NewSimLedger()
	ledger.RegisterAsset("WETH", 18)
	ledger.RegisterAsset("USDC", 6)

	sqrt, err := pricemath.SqrtRatioAtTick(priceTick)
	require.NoError(t, err)

	registry := NewSimRegistry()
	registry.AddPool(PoolInfo{
		Market:       "ETH-USDC",
		CallAsset:    "WETH",
		PutAsset:     "USDC",
		CallDecimals: 18,
		PutDecimals:  6,
		CallIsToken0: true,
		SqrtPriceX96: sqrt,
	})
	return ledger, registry
}

func TestPoolInfoOrientation(t *testing.T) {
	_, registry := testWorld(t, 0)
	pool, err := registry.Pool("ETH-USDC")
	require.NoError(t, err)

	assert.Equal(t, "WETH", pool.Token0())
	assert.Equal(t, "USDC", pool.Token1())
	assert.Equal(t, "WETH", pool.CollateralAsset(true))
	assert.Equal(t, "USDC", pool.CollateralAsset(false))
	assert.Equal(t, "USDC", pool.CounterAsset(true))
	assert.Equal(t, "WETH", pool.CounterAsset(false))
	assert.True(t, pool.CollateralIsToken0(true))
	assert.False(t, pool.CollateralIsToken0(false))
}

func TestSimRegistryUnknownPool(t *testing.T) {
	registry := NewSimRegistry()
	_, err := registry.Pool("NOPE")
	assert.ErrorIs(t, err, errs.ErrPoolNotFound)
}

func TestSimRegistryPoolCopies(t *testing.T) {
	_, registry := testWorld(t, 0)
	pool, err := registry.Pool("ETH-USDC")
	require.NoError(t, err)

	pool.SqrtPriceX96.AddUint64(pool.SqrtPriceX96, 1)
	again, err := registry.Pool("ETH-USDC")
	require.NoError(t, err)
	assert.NotEqual(t, pool.SqrtPriceX96.Dec(), again.SqrtPriceX96.Dec())
}

func TestSimPositionManagerUseUnuse(t *testing.T) {
	ledger, registry := testWorld(t, 0)
	pm := NewSimPositionManager(ledger, registry, "amm", "engine")

	// A range below the current tick holds only token1 (USDC).
	key := PositionKey{
		Market:    "ETH-USDC",
		TickLower: -2000,
		TickUpper: -1000,
		Liquidity: uint256.NewInt(1_000_000_000_000),
	}
	pm.Reserve("range", key)
	ledger.Mint("USDC", "amm", uint256.MustFromDecimal("1000000000000"))

	a0, a1, err := pm.UsePosition("range", key)
	require.NoError(t, err)
	assert.True(t, a0.IsZero())
	assert.False(t, a1.IsZero())
	assert.Equal(t, a1.Dec(), ledger.BalanceOf("USDC", "engine").Dec())
	assert.Equal(t, "0", pm.ReservedLiquidity("range", key).Dec())

	// Nothing left to withdraw.
	_, _, err = pm.UsePosition("range", key)
	assert.ErrorIs(t, err, errs.ErrInsufficientLiquidity)

	// Returning needs an allowance for the pull.
	err = pm.UnusePosition("range", key)
	assert.ErrorIs(t, err, errs.ErrInsufficientAllowance)

	require.NoError(t, ledger.Approve("USDC", "engine", "amm", a1))
	require.NoError(t, pm.UnusePosition("range", key))
	assert.Equal(t, "0", ledger.BalanceOf("USDC", "engine").Dec())
	assert.Equal(t, key.Liquidity.Dec(), pm.ReservedLiquidity("range", key).Dec())
}

func TestSimPositionManagerUnuseBeyondUsed(t *testing.T) {
	ledger, registry := testWorld(t, 0)
	pm := NewSimPositionManager(ledger, registry, "amm", "engine")

	key := PositionKey{
		Market:    "ETH-USDC",
		TickLower: -2000,
		TickUpper: -1000,
		Liquidity: uint256.NewInt(1_000_000),
	}
	err := pm.UnusePosition("range", key)
	assert.ErrorIs(t, err, errs.ErrInsufficientLiquidity)
}

func TestSimPositionManagerDonate(t *testing.T) {
	ledger, registry := testWorld(t, 0)
	pm := NewSimPositionManager(ledger, registry, "amm", "engine")

	key := PositionKey{
		Market:    "ETH-USDC",
		TickLower: -2000,
		TickUpper: -1000,
		Liquidity: uint256.NewInt(1_000_000_000_000),
	}

	// Fund the engine with the donation's asset amounts.
	_, a1, err := pricemathAmounts(t, registry, key)
	require.NoError(t, err)
	ledger.Mint("USDC", "engine", a1)
	require.NoError(t, ledger.Approve("USDC", "engine", "amm", a1))

	require.NoError(t, pm.DonateToPosition("range", key))
	// Donated liquidity becomes withdrawable without a prior use.
	assert.Equal(t, key.Liquidity.Dec(), pm.ReservedLiquidity("range", key).Dec())
}

func TestSimPositionManagerMarkUsed(t *testing.T) {
	ledger, registry := testWorld(t, 0)
	pm := NewSimPositionManager(ledger, registry, "amm", "engine")

	key := PositionKey{
		Market:    "ETH-USDC",
		TickLower: -2000,
		TickUpper: -1000,
		Liquidity: uint256.NewInt(500_000),
	}
	pm.MarkUsed("range", key)

	// The marked liquidity can be returned as if it had been withdrawn.
	_, a1, err := pricemathAmounts(t, registry, key)
	require.NoError(t, err)
	ledger.Mint("USDC", "engine", a1)
	require.NoError(t, ledger.Approve("USDC", "engine", "amm", a1))
	require.NoError(t, pm.UnusePosition("range", key))
}

func pricemathAmounts(t *testing.T, registry *SimRegistry, key PositionKey) (*uint256.Int, *uint256.Int, error) {
	t.Helper()
	pool, err := registry.Pool(key.Market)
	require.NoError(t, err)
	sqrtA, err := pricemath.SqrtRatioAtTick(key.TickLower)
	require.NoError(t, err)
	sqrtB, err := pricemath.SqrtRatioAtTick(key.TickUpper)
	require.NoError(t, err)
	return pricemath.AmountsForLiquidity(pool.SqrtPriceX96, sqrtA, sqrtB, key.Liquidity)
}

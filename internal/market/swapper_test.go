package market

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/pricemath"
)

func ratioWorld(t *testing.T, sqrt *uint256.Int) (*SimLedger, *SimRegistry) {
	t.Helper()
	ledger := NewSimLedger()
	ledger.RegisterAsset("WETH", 18)
	ledger.RegisterAsset("USDC", 6)

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

func TestSimSwapperQuoteAtParity(t *testing.T) {
	ledger, registry := ratioWorld(t, new(uint256.Int).Set(pricemath.Q96))
	s := NewSimSwapper(ledger, registry, "ETH-USDC", "swapper", "engine")

	out, err := s.Quote("WETH", uint256.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, "1000000", out.Dec())
}

func TestSimSwapperQuoteRatio(t *testing.T) {
	// sqrt price 2 means token1/token0 = 4.
	sqrt := new(uint256.Int).Lsh(uint256.NewInt(2), 96)
	ledger, registry := ratioWorld(t, sqrt)
	s := NewSimSwapper(ledger, registry, "ETH-USDC", "swapper", "engine")

	out, err := s.Quote("WETH", uint256.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, "4000000", out.Dec())

	out, err = s.Quote("USDC", uint256.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, "250000", out.Dec())
}

func TestSimSwapperQuoteUnknownAsset(t *testing.T) {
	ledger, registry := ratioWorld(t, new(uint256.Int).Set(pricemath.Q96))
	s := NewSimSwapper(ledger, registry, "ETH-USDC", "swapper", "engine")

	_, err := s.Quote("DOGE", uint256.NewInt(1))
	assert.ErrorIs(t, err, errs.ErrPoolNotFound)
}

func TestSimSwapperOnSwapReceived(t *testing.T) {
	ledger, registry := ratioWorld(t, new(uint256.Int).Set(pricemath.Q96))
	s := NewSimSwapper(ledger, registry, "ETH-USDC", "swapper", "engine")
	ledger.Mint("WETH", "engine", uint256.NewInt(3_000_000))
	ledger.Mint("USDC", "swapper", uint256.NewInt(10_000_000))

	require.NoError(t, ledger.Approve("WETH", "engine", "swapper", uint256.NewInt(3_000_000)))
	require.NoError(t, s.OnSwapReceived("WETH", "USDC", uint256.NewInt(3_000_000), nil))

	assert.Equal(t, "3000000", ledger.BalanceOf("USDC", "engine").Dec())
	assert.Equal(t, "7000000", ledger.BalanceOf("USDC", "swapper").Dec())
	assert.Equal(t, "0", ledger.BalanceOf("WETH", "engine").Dec())
	assert.Equal(t, "3000000", ledger.BalanceOf("WETH", "swapper").Dec())
}

func TestSimSwapperRequiresApproval(t *testing.T) {
	ledger, registry := ratioWorld(t, new(uint256.Int).Set(pricemath.Q96))
	s := NewSimSwapper(ledger, registry, "ETH-USDC", "swapper", "engine")
	ledger.Mint("WETH", "engine", uint256.NewInt(1_000_000))
	ledger.Mint("USDC", "swapper", uint256.NewInt(10_000_000))

	err := s.OnSwapReceived("WETH", "USDC", uint256.NewInt(1_000_000), nil)
	assert.ErrorIs(t, err, errs.ErrInsufficientAllowance)
	assert.Equal(t, "1000000", ledger.BalanceOf("WETH", "engine").Dec())
	assert.Equal(t, "0", ledger.BalanceOf("USDC", "engine").Dec())
}

func TestSimSwapperFillWithoutInventory(t *testing.T) {
	ledger, registry := ratioWorld(t, new(uint256.Int).Set(pricemath.Q96))
	s := NewSimSwapper(ledger, registry, "ETH-USDC", "swapper", "engine")
	ledger.Mint("WETH", "engine", uint256.NewInt(1_000_000))
	require.NoError(t, ledger.Approve("WETH", "engine", "swapper", uint256.NewInt(1_000_000)))

	err := s.OnSwapReceived("WETH", "USDC", uint256.NewInt(1_000_000), nil)
	assert.ErrorIs(t, err, errs.ErrInsufficientBalance)

	// A fill the swapper cannot pay pulls nothing.
	assert.Equal(t, "1000000", ledger.BalanceOf("WETH", "engine").Dec())
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/market"
	"clamm-options/internal/models"
	"clamm-options/internal/pricemath"
	"clamm-options/internal/stream"
)

func TestMintPut(t *testing.T) {
	h := newHarness(t)
	traderBefore := h.ledger.BalanceOf("USDC", acctTrader)

	id := h.mintPut(1_000_000_000_000)
	assert.Equal(t, models.OptionID(1), id)

	opt, err := h.eng.Option(id)
	require.NoError(t, err)
	assert.False(t, opt.IsCall)
	assert.Equal(t, -1000, opt.TickLower)
	assert.Equal(t, h.now.Add(ttlDay), opt.Expiry)
	require.Len(t, opt.Legs, 1)
	assert.Equal(t, "1000000000000", opt.Legs[0].Liquidity.Dec())

	owner, err := h.eng.Owner(id)
	require.NoError(t, err)
	assert.Equal(t, acctTrader, owner)

	// The trader paid a premium in the put asset.
	traderAfter := h.ledger.BalanceOf("USDC", acctTrader)
	assert.True(t, traderAfter.Lt(traderBefore), "no premium was paid")

	// The premium was donated back to the source range as liquidity.
	assert.False(t, h.putReserve().IsZero(), "no donation landed")
}

func TestMintCall(t *testing.T) {
	h := newHarness(t)
	traderBefore := h.ledger.BalanceOf("WETH", acctTrader)

	id, err := h.eng.Mint(acctTrader, callParams(uint256.MustFromDecimal("1000000000000000000")))
	require.NoError(t, err)

	opt, err := h.eng.Option(id)
	require.NoError(t, err)
	assert.True(t, opt.IsCall)
	assert.Equal(t, 200, opt.StrikeTick())

	// A call's premium is paid in the call asset.
	traderAfter := h.ledger.BalanceOf("WETH", acctTrader)
	assert.True(t, traderAfter.Lt(traderBefore), "no premium was paid")
}

func TestMintFee(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.FeeStrategy = market.FlatFeeStrategy{Bps: 100}
		cfg.FeeRecipient = "treasury"
	})
	traderBefore := h.ledger.BalanceOf("USDC", acctTrader)

	h.mintPut(1_000_000_000_000)

	fee := h.ledger.BalanceOf("USDC", "treasury")
	require.False(t, fee.IsZero(), "no fee was collected")

	paid := new(uint256.Int).Sub(traderBefore, h.ledger.BalanceOf("USDC", acctTrader))
	prem := new(uint256.Int).Sub(paid, fee)
	want := new(uint256.Int).Mul(prem, uint256.NewInt(100))
	want.Div(want, uint256.NewInt(10_000))
	assert.Equal(t, want.Dec(), fee.Dec())
}

func TestMintFeeFailureRefundsPremium(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.FeeStrategy = market.FlatFeeStrategy{Bps: 100}
		cfg.FeeRecipient = "treasury"
	})

	// Learn the cost of this mint from a funded account.
	traderBefore := h.ledger.BalanceOf("USDC", acctTrader)
	h.mintPut(400_000_000_000)
	fee := h.ledger.BalanceOf("USDC", "treasury")
	require.False(t, fee.IsZero(), "no fee was collected")
	paid := new(uint256.Int).Sub(traderBefore, h.ledger.BalanceOf("USDC", acctTrader))
	prem := new(uint256.Int).Sub(paid, fee)

	// An account funded to exactly the premium covers the premium
	// transfer but not the fee.
	h.ledger.Mint("USDC", "shorty", prem)
	engineUSDC := h.ledger.BalanceOf("USDC", acctEngine)
	reserve := h.putReserve()

	_, err := h.eng.Mint("shorty", putParams(400_000_000_000))
	require.ErrorIs(t, err, errs.ErrInsufficientBalance)

	// The failed mint left nothing behind: premium refunded, collateral
	// back in the range, no new option.
	assert.Equal(t, prem.Dec(), h.ledger.BalanceOf("USDC", "shorty").Dec(), "premium was not refunded")
	assert.Equal(t, fee.Dec(), h.ledger.BalanceOf("USDC", "treasury").Dec())
	assert.Equal(t, engineUSDC.Dec(), h.ledger.BalanceOf("USDC", acctEngine).Dec())
	assert.Equal(t, reserve.Dec(), h.putReserve().Dec())
	assert.Len(t, h.eng.Options(), 1)
}

func TestMintRejectsMixedMarkets(t *testing.T) {
	h := newHarness(t)
	sqrt, err := pricemath.SqrtRatioAtTick(0)
	require.NoError(t, err)
	h.registry.AddPool(market.PoolInfo{
		Market:       "ETH2-USDC",
		CallAsset:    "WETH",
		PutAsset:     "USDC",
		CallDecimals: 18,
		PutDecimals:  6,
		CallIsToken0: true,
		SqrtPriceX96: sqrt,
	})
	require.NoError(t, h.eng.SetMarketApproved(acctOp, "ETH2-USDC", true))
	reserve := h.putReserve()

	p := putParams(400_000_000_000)
	p.Legs = append(p.Legs, models.LegRequest{
		Handler: handlerRange, Market: "ETH2-USDC",
		TickLower: -1000, TickUpper: -900,
		Liquidity: uint256.NewInt(400_000_000_000),
	})
	_, err = h.eng.Mint(acctTrader, p)
	assert.ErrorIs(t, err, errs.ErrMarketMismatch)
	assert.Equal(t, reserve.Dec(), h.putReserve().Dec())
}

func TestMintNoLegs(t *testing.T) {
	h := newHarness(t)
	p := putParams(1)
	p.Legs = nil
	_, err := h.eng.Mint(acctTrader, p)
	assert.ErrorIs(t, err, errs.ErrNoLegs)
}

func TestMintVolatilityUnset(t *testing.T) {
	h := newHarness(t)
	p := putParams(1_000_000)
	p.TTL = 48 * time.Hour
	_, err := h.eng.Mint(acctTrader, p)
	assert.ErrorIs(t, err, errs.ErrVolatilityUnset)
}

func TestMintMarketNotApproved(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.SetMarketApproved(acctOp, mktETHUSDC, false))
	_, err := h.eng.Mint(acctTrader, putParams(1_000_000))
	assert.ErrorIs(t, err, errs.ErrMarketNotApproved)
}

func TestMintLegStrikeMismatch(t *testing.T) {
	h := newHarness(t)
	p := putParams(1_000_000)
	p.TickLower = -990 // leg stays at -1000
	_, err := h.eng.Mint(acctTrader, p)
	assert.ErrorIs(t, err, errs.ErrLegStrikeMismatch)
}

func TestMintInvalidCollateral(t *testing.T) {
	h := newHarness(t)
	before := h.ledger.BalanceOf("WETH", acctEngine)

	// A put leg above the current price withdraws the call asset, which
	// cannot collateralize a put.
	p := models.MintParams{
		Legs: []models.LegRequest{{
			Handler: handlerRange, Market: mktETHUSDC,
			TickLower: 100, TickUpper: 200,
			Liquidity: uint256.NewInt(1_000_000_000_000),
		}},
		TickLower: 100,
		TickUpper: 200,
		TTL:       ttlDay,
		IsCall:    false,
		MaxCost:   uint256.MustFromDecimal("1000000000000000000000"),
	}
	_, err := h.eng.Mint(acctTrader, p)
	assert.ErrorIs(t, err, errs.ErrInvalidCollateral)

	// The withdrawal was unwound.
	assert.Equal(t, before.Dec(), h.ledger.BalanceOf("WETH", acctEngine).Dec())
}

func TestMintMaxCostExceeded(t *testing.T) {
	h := newHarness(t)
	traderBefore := h.ledger.BalanceOf("USDC", acctTrader)
	reserveBefore := h.putReserve()

	p := putParams(1_000_000_000_000)
	p.MaxCost = uint256.NewInt(1)
	_, err := h.eng.Mint(acctTrader, p)
	assert.ErrorIs(t, err, errs.ErrMaxCostExceeded)

	// Nothing moved: the trader paid nothing and the withdrawn
	// collateral went back to the range.
	assert.Equal(t, traderBefore.Dec(), h.ledger.BalanceOf("USDC", acctTrader).Dec())
	assert.Equal(t, reserveBefore.Dec(), h.putReserve().Dec())
	assert.Equal(t, "0", h.ledger.BalanceOf("USDC", acctEngine).Dec())
}

func TestMintNilMaxCost(t *testing.T) {
	h := newHarness(t)
	p := putParams(1_000_000_000_000)
	p.MaxCost = nil
	_, err := h.eng.Mint(acctTrader, p)
	assert.ErrorIs(t, err, errs.ErrMaxCostExceeded)
}

func TestMintEmitsEvent(t *testing.T) {
	hub := stream.NewHub()
	hub.Start(context.Background())
	defer hub.Stop()
	ch := hub.Subscribe(models.EventMint)

	h := newHarness(t, func(cfg *Config) { cfg.Hub = hub })
	id := h.mintPut(1_000_000_000_000)

	select {
	case ev := <-ch:
		assert.Equal(t, id, ev.OptionID)
		assert.Equal(t, acctTrader, ev.Caller)
		assert.False(t, ev.Premium.IsZero())
		assert.Equal(t, h.now, ev.At)
	case <-time.After(2 * time.Second):
		t.Fatal("no mint event")
	}
}

// reentrantPricer calls back into the engine from inside a mint.
type reentrantPricer struct {
	eng *Engine
}

func (p *reentrantPricer) GetOptionPrice(isPut bool, expiry time.Time, strike, spot *uint256.Int, volID uint64) (*uint256.Int, error) {
	if _, err := p.eng.Mint(acctTrader, putParams(1)); err != nil {
		return nil, err
	}
	return uint256.NewInt(1_000_000), nil
}

func TestMintRejectsReentrancy(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.SetPricer(acctOp, &reentrantPricer{eng: h.eng}))

	_, err := h.eng.Mint(acctTrader, putParams(1_000_000_000_000))
	assert.ErrorIs(t, err, errs.ErrReentrantCall)
}

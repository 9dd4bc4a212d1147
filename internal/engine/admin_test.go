package engine

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/market"
)

func TestAdminOperatorOnly(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.eng.SetVolatilities(acctTrader, []time.Duration{ttlDay}, []uint64{1}), errs.ErrNotOperator)
	assert.ErrorIs(t, h.eng.SetMarketApproved(acctTrader, "X", true), errs.ErrNotOperator)
	assert.ErrorIs(t, h.eng.SetSettlerApproved(acctTrader, "X", true), errs.ErrNotOperator)
	assert.ErrorIs(t, h.eng.SetFeeRecipient(acctTrader, "X"), errs.ErrNotOperator)
	assert.ErrorIs(t, h.eng.SetPricer(acctTrader, &unitPricer{unit: uint256.NewInt(1)}), errs.ErrNotOperator)
	assert.ErrorIs(t, h.eng.SetFeeStrategy(acctTrader, nil), errs.ErrNotOperator)
	assert.ErrorIs(t, h.eng.SetMetadataFetcher(acctTrader, nil), errs.ErrNotOperator)
	_, err := h.eng.EmergencySweep(acctTrader, "USDC")
	assert.ErrorIs(t, err, errs.ErrNotOperator)
}

func TestSetVolatilities(t *testing.T) {
	h := newHarness(t)

	err := h.eng.SetVolatilities(acctOp, []time.Duration{ttlDay, 2 * ttlDay}, []uint64{5})
	assert.ErrorIs(t, err, errs.ErrArrayLenMismatch)

	require.NoError(t, h.eng.SetVolatilities(acctOp, []time.Duration{2 * ttlDay}, []uint64{5}))
	assert.Equal(t, uint64(5), h.eng.VolatilityID(2*ttlDay))

	// An id of zero clears the entry and blocks mints at that TTL.
	require.NoError(t, h.eng.SetVolatilities(acctOp, []time.Duration{ttlDay}, []uint64{0}))
	assert.Equal(t, uint64(0), h.eng.VolatilityID(ttlDay))
	_, err = h.eng.Mint(acctTrader, putParams(1_000_000))
	assert.ErrorIs(t, err, errs.ErrVolatilityUnset)
}

func TestMarketApprovalDoesNotStrandOptions(t *testing.T) {
	h := newHarness(t)
	id := h.mintPut(1_000_000_000_000)

	require.NoError(t, h.eng.SetMarketApproved(acctOp, mktETHUSDC, false))
	assert.False(t, h.eng.IsMarketApproved(mktETHUSDC))

	// Existing options stay exercisable after the market is delisted.
	h.movePrice(-1100)
	require.NoError(t, h.eng.Exercise(acctTrader, id, liqs(1_000_000_000_000)))
}

func TestSetFeeRecipient(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.FeeStrategy = market.FlatFeeStrategy{Bps: 100}
	})

	// No recipient: no fee is charged even with a strategy configured.
	h.mintPut(400_000_000_000)
	assert.Equal(t, "", h.eng.FeeRecipient())

	require.NoError(t, h.eng.SetFeeRecipient(acctOp, "treasury"))
	h.mintPut(400_000_000_000)
	assert.False(t, h.ledger.BalanceOf("USDC", "treasury").IsZero())
}

func TestSetPricerNil(t *testing.T) {
	h := newHarness(t)
	err := h.eng.SetPricer(acctOp, nil)
	require.Error(t, err)
	var ae *errs.AdminError
	assert.ErrorAs(t, err, &ae)
}

func TestSetFeeStrategyNilDisables(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.FeeStrategy = market.FlatFeeStrategy{Bps: 100}
		cfg.FeeRecipient = "treasury"
	})
	require.NoError(t, h.eng.SetFeeStrategy(acctOp, nil))

	h.mintPut(1_000_000_000_000)
	assert.Equal(t, "0", h.ledger.BalanceOf("USDC", "treasury").Dec())
}

func TestEmergencySweep(t *testing.T) {
	h := newHarness(t)
	h.mintPut(1_000_000_000_000)

	held := h.ledger.BalanceOf("USDC", acctEngine)
	require.False(t, held.IsZero())

	swept, err := h.eng.EmergencySweep(acctOp, "USDC")
	require.NoError(t, err)
	assert.Equal(t, held.Dec(), swept.Dec())
	assert.Equal(t, "0", h.ledger.BalanceOf("USDC", acctEngine).Dec())
	assert.Equal(t, held.Dec(), h.ledger.BalanceOf("USDC", acctOp).Dec())

	// Sweeping an empty balance is a no-op.
	swept, err = h.eng.EmergencySweep(acctOp, "USDC")
	require.NoError(t, err)
	assert.True(t, swept.IsZero())
}

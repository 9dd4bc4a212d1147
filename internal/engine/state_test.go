package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestore(t *testing.T) {
	h := newHarness(t)
	id := h.mintPut(1_000_000_000_000)
	h.eng.SetDelegate(acctTrader, "mate", true)
	require.NoError(t, h.eng.SetFeeRecipient(acctOp, "treasury"))

	st := h.eng.Snapshot()

	// Restore into a fresh engine over the same market.
	h2 := newHarness(t)
	h2.eng.Restore(st)

	opt, err := h2.eng.Option(id)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000", opt.Legs[0].Liquidity.Dec())
	assert.Equal(t, h.now.Add(ttlDay), opt.Expiry)

	owner, err := h2.eng.Owner(id)
	require.NoError(t, err)
	assert.Equal(t, acctTrader, owner)
	assert.True(t, h2.eng.IsDelegate(acctTrader, "mate"))
	assert.Equal(t, uint64(1), h2.eng.VolatilityID(ttlDay))
	assert.True(t, h2.eng.IsMarketApproved(mktETHUSDC))
	assert.True(t, h2.eng.IsSettlerApproved(acctKeeper))
	assert.Equal(t, "treasury", h2.eng.FeeRecipient())

	// New ids continue past the restored ones.
	next := h2.mintPut(100_000_000_000)
	assert.Greater(t, uint64(next), uint64(id))
}

func TestSnapshotIsDetached(t *testing.T) {
	h := newHarness(t)
	id := h.mintPut(1_000_000_000_000)

	st := h.eng.Snapshot()
	st.Options[0].Legs[0].Liquidity.Clear()
	st.Owners[id] = "mallory"

	opt, err := h.eng.Option(id)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000", opt.Legs[0].Liquidity.Dec())
	owner, err := h.eng.Owner(id)
	require.NoError(t, err)
	assert.Equal(t, acctTrader, owner)
}

func TestRestoreClearedFeeRecipient(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.FeeRecipient = "treasury" })
	require.NoError(t, h.eng.SetFeeRecipient(acctOp, ""))
	st := h.eng.Snapshot()

	// Disabling fees survives a restart: the configured recipient does
	// not resurrect on restore.
	h2 := newHarness(t, func(cfg *Config) { cfg.FeeRecipient = "treasury" })
	h2.eng.Restore(st)
	assert.Equal(t, "", h2.eng.FeeRecipient())

	// A zero-value snapshot leaves the configured recipient alone.
	h3 := newHarness(t, func(cfg *Config) { cfg.FeeRecipient = "treasury" })
	h3.eng.Restore(State{})
	assert.Equal(t, "treasury", h3.eng.FeeRecipient())
}

func TestRestoreEmptyState(t *testing.T) {
	h := newHarness(t)
	h.eng.Restore(State{})

	// The engine starts minting at 1 again.
	require.NoError(t, h.eng.SetMarketApproved(acctOp, mktETHUSDC, true))
	require.NoError(t, h.eng.SetVolatilities(acctOp, []time.Duration{ttlDay}, []uint64{1}))
	id := h.mintPut(1_000_000_000_000)
	assert.Equal(t, uint64(1), uint64(id))
}

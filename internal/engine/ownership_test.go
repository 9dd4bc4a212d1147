package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/market"
)

func TestTransferOwnership(t *testing.T) {
	h := newHarness(t)
	id := h.mintPut(1_000_000_000_000)

	require.NoError(t, h.eng.Transfer(acctTrader, id, "bob"))
	owner, err := h.eng.Owner(id)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	// The previous owner lost all rights.
	h.movePrice(-1100)
	err = h.eng.Exercise(acctTrader, id, liqs(1_000_000_000_000))
	assert.ErrorIs(t, err, errs.ErrNotOwnerOrDelegate)
	err = h.eng.Transfer(acctTrader, id, acctTrader)
	assert.ErrorIs(t, err, errs.ErrNotOwner)

	require.NoError(t, h.eng.Exercise("bob", id, liqs(1_000_000_000_000)))
}

func TestTransferDelegationsDoNotFollow(t *testing.T) {
	h := newHarness(t)
	id := h.mintPut(1_000_000_000_000)
	h.eng.SetDelegate(acctTrader, "mate", true)

	require.NoError(t, h.eng.Transfer(acctTrader, id, "bob"))

	// The grantor's delegate has no standing under the new owner.
	h.movePrice(-1100)
	err := h.eng.Exercise("mate", id, liqs(1_000_000_000_000))
	assert.ErrorIs(t, err, errs.ErrNotOwnerOrDelegate)
}

func TestTransferUnknownOption(t *testing.T) {
	h := newHarness(t)
	err := h.eng.Transfer(acctTrader, 99, "bob")
	assert.ErrorIs(t, err, errs.ErrOptionNotFound)
}

func TestDelegateCoversAllOwnedOptions(t *testing.T) {
	h := newHarness(t)
	first := h.mintPut(400_000_000_000)
	second := h.mintPut(400_000_000_000)

	// One grant covers options minted before and after it.
	h.eng.SetDelegate(acctTrader, "mate", true)
	third := h.mintPut(200_000_000_000)

	h.movePrice(-1100)
	require.NoError(t, h.eng.Exercise("mate", first, liqs(400_000_000_000)))
	require.NoError(t, h.eng.Exercise("mate", second, liqs(400_000_000_000)))
	require.NoError(t, h.eng.Exercise("mate", third, liqs(200_000_000_000)))
}

func TestDelegateIdempotent(t *testing.T) {
	h := newHarness(t)
	h.eng.SetDelegate(acctTrader, "mate", true)
	h.eng.SetDelegate(acctTrader, "mate", true)
	assert.True(t, h.eng.IsDelegate(acctTrader, "mate"))

	h.eng.SetDelegate(acctTrader, "mate", false)
	h.eng.SetDelegate(acctTrader, "mate", false)
	assert.False(t, h.eng.IsDelegate(acctTrader, "mate"))

	// Revoking an absent delegate never creates state.
	h.eng.SetDelegate("nobody", "mate", false)
	assert.False(t, h.eng.IsDelegate("nobody", "mate"))
}

func TestTokenURI(t *testing.T) {
	h := newHarness(t)
	id := h.mintPut(1_000_000_000_000)

	// No fetcher configured.
	uri, err := h.eng.TokenURI(id)
	require.NoError(t, err)
	assert.Equal(t, "", uri)

	require.NoError(t, h.eng.SetMetadataFetcher(acctOp, market.StaticMetadata{BaseURI: "opt://"}))
	uri, err = h.eng.TokenURI(id)
	require.NoError(t, err)
	assert.Equal(t, "opt://1", uri)

	_, err = h.eng.TokenURI(99)
	assert.ErrorIs(t, err, errs.ErrOptionNotFound)
}

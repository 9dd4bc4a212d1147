// Package market defines the capability interfaces of the engine's
// external collaborators — the concentrated-liquidity pools, the
// position manager that moves liquidity on command, the pricing oracle,
// the swap executor, and the fungible asset ledger — together with
// in-memory implementations used by tests and the CLI simulation.
package market

import (
	"time"

	"github.com/holiman/uint256"
)

// PoolInfo is a point-in-time view of one concentrated-liquidity market.
type PoolInfo struct {
	Market       string
	CallAsset    string
	PutAsset     string
	CallDecimals uint8
	PutDecimals  uint8
	CallIsToken0 bool
	SqrtPriceX96 *uint256.Int
}

// Token0 returns the asset on the token0 side of the market.
func (p PoolInfo) Token0() string {
	if p.CallIsToken0 {
		return p.CallAsset
	}
	return p.PutAsset
}

// Token1 returns the asset on the token1 side of the market.
func (p PoolInfo) Token1() string {
	if p.CallIsToken0 {
		return p.PutAsset
	}
	return p.CallAsset
}

// CollateralAsset returns the asset that collateralizes an option side:
// the call asset for calls, the put asset for puts.
func (p PoolInfo) CollateralAsset(isCall bool) string {
	if isCall {
		return p.CallAsset
	}
	return p.PutAsset
}

// CounterAsset returns the asset on the other side of the trade.
func (p PoolInfo) CounterAsset(isCall bool) string {
	if isCall {
		return p.PutAsset
	}
	return p.CallAsset
}

// CollateralIsToken0 reports whether the collateral asset for the given
// option side sits on token0.
func (p PoolInfo) CollateralIsToken0(isCall bool) bool {
	return isCall == p.CallIsToken0
}

// PoolRegistry resolves market identifiers to pool state.
type PoolRegistry interface {
	// Pool returns the current view of a market. The returned value is a
	// snapshot; SqrtPriceX96 reflects the price at call time.
	Pool(market string) (PoolInfo, error)
}

// PositionKey addresses a quantity of liquidity in one tick range of one
// market.
type PositionKey struct {
	Market    string
	TickLower int
	TickUpper int
	Liquidity *uint256.Int
}

// PositionManager moves liquidity in and out of market positions on the
// engine's behalf. Asset settlement runs through the ledger: UsePosition
// pushes the withdrawn assets to the engine, UnusePosition and
// DonateToPosition pull assets back under a prior approval.
type PositionManager interface {
	// Account is the ledger account assets are pulled into.
	Account() string
	// UsePosition withdraws liquidity, returning the per-token amounts
	// released to the caller.
	UsePosition(handler string, key PositionKey) (amount0, amount1 *uint256.Int, err error)
	// UnusePosition returns previously withdrawn liquidity.
	UnusePosition(handler string, key PositionKey) error
	// DonateToPosition deposits additional liquidity as yield without
	// minting a claim on it.
	DonateToPosition(handler string, key PositionKey) error
}

// AssetLedger is the fungible-asset balance/transfer/approve surface.
type AssetLedger interface {
	Decimals(asset string) (uint8, error)
	BalanceOf(asset, account string) *uint256.Int
	Transfer(asset, from, to string, amount *uint256.Int) error
	Approve(asset, owner, spender string, amount *uint256.Int) error
	TransferFrom(asset, spender, from, to string, amount *uint256.Int) error
}

// SwapExecutor converts one asset into another during exercise and
// settlement. The engine approves amountIn of assetIn to the executor's
// account before invoking OnSwapReceived; the executor pulls the input
// and pushes back enough assetOut before returning, moving nothing when
// it cannot fill. The engine verifies the return against its own
// balance rather than trusting the executor.
type SwapExecutor interface {
	Account() string
	OnSwapReceived(assetIn, assetOut string, amountIn *uint256.Int, payload []byte) error
}

// OptionPricer is the external pricing oracle. It returns the price per
// unit of the underlying, quoted in the asset used for the opposite side
// of the trade, in the same decimal scale as strike and spot.
type OptionPricer interface {
	GetOptionPrice(isPut bool, expiry time.Time, strike, spot *uint256.Int, volID uint64) (*uint256.Int, error)
}

// FeeStrategy computes the protocol fee charged on top of a premium.
type FeeStrategy interface {
	FeeFor(caller string, premium *uint256.Int) *uint256.Int
}

// MetadataFetcher supplies the descriptive document for an option id.
type MetadataFetcher interface {
	TokenURI(optionID uint64) string
}

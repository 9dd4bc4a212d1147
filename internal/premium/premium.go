// Package premium computes the premium owed for an option, delegating
// the pricing formula itself to the external oracle.
package premium

import (
	"time"

	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/market"
	"clamm-options/internal/pricemath"
)

// Compute returns the premium owed for notional units of the underlying.
//
// The oracle quotes a price per unit of the underlying in the opposite
// asset, in the same decimal scale as strike and spot. notional is in
// underlying (call asset) units. A put's premium is paid in the put
// asset: price times notional, descaled by the underlying's precision.
// A call is collateralized and paid in the underlying itself, so the
// same quantity is additionally divided by spot and rescaled to the
// underlying's precision. Oracle failures propagate; there is no retry.
func Compute(pricer market.OptionPricer, isPut bool, expiry time.Time, strike, spot *uint256.Int, volID uint64, notional *uint256.Int, callDecimals uint8) (*uint256.Int, error) {
	unit, err := pricer.GetOptionPrice(isPut, expiry, strike, spot, volID)
	if err != nil {
		return nil, errs.Wrap(err, "pricing oracle")
	}

	callScale := pricemath.Pow10(callDecimals)
	base, err := pricemath.MulDiv(notional, unit, callScale)
	if err != nil {
		return nil, err
	}
	if isPut {
		return base, nil
	}
	return pricemath.MulDiv(base, callScale, spot)
}

// NotionalUnits converts a withdrawn collateral total into underlying
// units for pricing. Call collateral already is the underlying; put
// collateral is the quote asset and converts through the strike.
func NotionalUnits(isCall bool, totalWithdrawn, strike *uint256.Int, callDecimals uint8) (*uint256.Int, error) {
	if isCall {
		return new(uint256.Int).Set(totalWithdrawn), nil
	}
	return pricemath.MulDiv(totalWithdrawn, pricemath.Pow10(callDecimals), strike)
}

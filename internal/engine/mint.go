package engine

import (
	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/logging"
	"clamm-options/internal/market"
	"clamm-options/internal/models"
	"clamm-options/internal/premium"
	"clamm-options/internal/pricemath"
)

// usedLeg tracks one completed collateral withdrawal so a failing mint
// can hand the liquidity back before unwinding.
type usedLeg struct {
	req     models.LegRequest
	asset0  string
	asset1  string
	amount0 *uint256.Int
	amount1 *uint256.Int
}

// Mint creates a new option: it withdraws each leg's liquidity as
// collateral, prices the premium on the withdrawn notional, collects
// premium and protocol fee from the caller, donates the premium back
// into the source positions pro rata as yield, and records the option
// under the caller's ownership.
func (e *Engine) Mint(caller string, p models.MintParams) (models.OptionID, error) {
	release, err := e.g.enter()
	if err != nil {
		return 0, err
	}
	defer release()

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.mint(caller, p)
	if err != nil {
		return 0, errs.NewOptionError(0, "mint", err)
	}
	return id, nil
}

func (e *Engine) mint(caller string, p models.MintParams) (models.OptionID, error) {
	if len(p.Legs) == 0 {
		return 0, errs.ErrNoLegs
	}
	volID, ok := e.ttlVols[p.TTL]
	if !ok || volID == 0 {
		return 0, errs.Wrapf(errs.ErrVolatilityUnset, "ttl %s", p.TTL)
	}
	for _, req := range p.Legs {
		if err := e.commitLeg(req, p.TickLower, p.TickUpper, p.IsCall); err != nil {
			return 0, err
		}
		// One market per option: pricing and payouts resolve against a
		// single pool.
		if req.Market != p.Legs[0].Market {
			return 0, errs.Wrapf(errs.ErrMarketMismatch, "leg market %s vs %s", req.Market, p.Legs[0].Market)
		}
	}

	// Withdraw collateral leg by leg. Each withdrawal must release
	// exactly one non-zero amount, on the collateral asset's side.
	amounts := make([]*uint256.Int, len(p.Legs))
	total := new(uint256.Int)
	var used []usedLeg
	for i, req := range p.Legs {
		pool, err := e.pools.Pool(req.Market)
		if err != nil {
			e.unwindMint(used)
			return 0, err
		}
		a0, a1, err := e.pm.UsePosition(req.Handler, market.PositionKey{
			Market:    req.Market,
			TickLower: req.TickLower,
			TickUpper: req.TickUpper,
			Liquidity: new(uint256.Int).Set(req.Liquidity),
		})
		if err != nil {
			e.unwindMint(used)
			return 0, err
		}
		want, other := a0, a1
		if !pool.CollateralIsToken0(p.IsCall) {
			want, other = a1, a0
		}
		used = append(used, usedLeg{
			req:     req,
			asset0:  pool.Token0(),
			asset1:  pool.Token1(),
			amount0: a0,
			amount1: a1,
		})
		if want.IsZero() || !other.IsZero() {
			e.unwindMint(used)
			return 0, errs.Wrapf(errs.ErrInvalidCollateral,
				"leg %d released %s/%s", i, a0.Dec(), a1.Dec())
		}
		amounts[i] = want
		total.Add(total, want)
	}

	// Strike from the strike-bound tick, spot from the reference
	// market's current price; both quote-denominated.
	ref, err := e.pools.Pool(p.Legs[0].Market)
	if err != nil {
		e.unwindMint(used)
		return 0, err
	}
	strikeTick := p.TickLower
	if p.IsCall {
		strikeTick = p.TickUpper
	}
	strike, err := pricemath.PriceAtTick(strikeTick, ref.PutDecimals, ref.CallIsToken0)
	if err != nil {
		e.unwindMint(used)
		return 0, err
	}
	spot, err := pricemath.PriceFromSqrtX96(ref.SqrtPriceX96, ref.PutDecimals, ref.CallIsToken0)
	if err != nil {
		e.unwindMint(used)
		return 0, err
	}

	expiry := e.now().Add(p.TTL)
	notional, err := premium.NotionalUnits(p.IsCall, total, strike, ref.CallDecimals)
	if err != nil {
		e.unwindMint(used)
		return 0, err
	}
	prem, err := premium.Compute(e.pricer, !p.IsCall, expiry, strike, spot, volID, notional, ref.CallDecimals)
	if err != nil {
		e.unwindMint(used)
		return 0, err
	}

	fee := new(uint256.Int)
	if e.fees != nil && e.feeRecipient != "" {
		fee = e.fees.FeeFor(caller, prem)
	}
	cost := new(uint256.Int).Add(prem, fee)
	if p.MaxCost == nil || cost.Gt(p.MaxCost) {
		e.unwindMint(used)
		return 0, errs.Wrapf(errs.ErrMaxCostExceeded, "cost %s", cost.Dec())
	}

	// The premium redistributes across the legs in proportion to each
	// leg's share of the withdrawn notional, converted back into
	// liquidity over the leg's own range and donated as yield. All the
	// conversion math runs before any premium moves, so the only
	// failures after collection are the transfers themselves.
	shares := make([]*uint256.Int, len(p.Legs))
	donations := make([]*uint256.Int, len(p.Legs))
	for i, req := range p.Legs {
		share, err := pricemath.MulDiv(prem, amounts[i], total)
		if err != nil {
			e.unwindMint(used)
			return 0, err
		}
		if share.IsZero() {
			continue
		}
		sqrtA, err := pricemath.SqrtRatioAtTick(req.TickLower)
		if err != nil {
			e.unwindMint(used)
			return 0, err
		}
		sqrtB, err := pricemath.SqrtRatioAtTick(req.TickUpper)
		if err != nil {
			e.unwindMint(used)
			return 0, err
		}
		var donation *uint256.Int
		if ref.CollateralIsToken0(p.IsCall) {
			donation, err = pricemath.LiquidityForAmount0(sqrtA, sqrtB, share)
		} else {
			donation, err = pricemath.LiquidityForAmount1(sqrtA, sqrtB, share)
		}
		if err != nil {
			e.unwindMint(used)
			return 0, err
		}
		if donation.IsZero() {
			continue
		}
		shares[i], donations[i] = share, donation
	}

	premAsset := ref.CollateralAsset(p.IsCall)
	if err := e.ledger.Transfer(premAsset, caller, e.account, prem); err != nil {
		e.unwindMint(used)
		return 0, err
	}
	if !fee.IsZero() {
		if err := e.ledger.Transfer(premAsset, caller, e.feeRecipient, fee); err != nil {
			e.refundPremium(premAsset, caller, prem, nil)
			e.unwindMint(used)
			return 0, err
		}
	}

	donated := new(uint256.Int)
	for i, req := range p.Legs {
		if donations[i] == nil {
			continue
		}
		if err := e.ledger.Approve(premAsset, e.account, e.pm.Account(), shares[i]); err != nil {
			e.refundPremium(premAsset, caller, new(uint256.Int).Sub(prem, donated), fee)
			e.unwindMint(used)
			return 0, err
		}
		if err := e.pm.DonateToPosition(req.Handler, market.PositionKey{
			Market:    req.Market,
			TickLower: req.TickLower,
			TickUpper: req.TickUpper,
			Liquidity: donations[i],
		}); err != nil {
			e.refundPremium(premAsset, caller, new(uint256.Int).Sub(prem, donated), fee)
			e.unwindMint(used)
			return 0, err
		}
		donated.Add(donated, shares[i])
	}

	id := models.OptionID(e.nextID)
	e.nextID++
	legs := make([]models.Leg, len(p.Legs))
	for i, req := range p.Legs {
		legs[i] = models.Leg{
			Handler:   req.Handler,
			Market:    req.Market,
			TickLower: req.TickLower,
			TickUpper: req.TickUpper,
			Liquidity: new(uint256.Int).Set(req.Liquidity),
		}
	}
	e.options[id] = &models.Option{
		ID:        id,
		TickLower: p.TickLower,
		TickUpper: p.TickUpper,
		Expiry:    expiry,
		IsCall:    p.IsCall,
		Legs:      legs,
	}
	e.owners[id] = caller

	logging.LogMint(e.log, uint64(id), p.IsCall, len(legs), prem.Dec(), fee.Dec(), total.Dec())
	e.emit(models.Event{
		Kind:     models.EventMint,
		OptionID: id,
		Caller:   caller,
		Premium:  new(uint256.Int).Set(prem),
		Fee:      new(uint256.Int).Set(fee),
		Notional: new(uint256.Int).Set(total),
	})
	return id, nil
}

// refundPremium returns collected premium (and the fee, when it already
// reached the recipient) to the caller of a failing mint. Best effort:
// a refund failure is logged, not returned, because the original error
// is the one the caller needs.
func (e *Engine) refundPremium(asset, caller string, premium, fee *uint256.Int) {
	if premium != nil && !premium.IsZero() {
		if err := e.ledger.Transfer(asset, e.account, caller, premium); err != nil {
			e.log.Warn().Err(err).Str("asset", asset).Msg("premium refund failed")
		}
	}
	if fee != nil && !fee.IsZero() {
		if err := e.ledger.Transfer(asset, e.feeRecipient, caller, fee); err != nil {
			e.log.Warn().Err(err).Str("asset", asset).Msg("fee refund failed")
		}
	}
}

// unwindMint hands already-withdrawn collateral back to the position
// manager so a failing mint leaves no liquidity outstanding. Best
// effort: an unwind failure is logged, not returned, because the
// original error is the one the caller needs.
func (e *Engine) unwindMint(used []usedLeg) {
	for _, u := range used {
		if err := e.ledger.Approve(u.asset0, e.account, e.pm.Account(), u.amount0); err != nil {
			e.log.Warn().Err(err).Str("market", u.req.Market).Msg("mint unwind approve failed")
			continue
		}
		if err := e.ledger.Approve(u.asset1, e.account, e.pm.Account(), u.amount1); err != nil {
			e.log.Warn().Err(err).Str("market", u.req.Market).Msg("mint unwind approve failed")
			continue
		}
		if err := e.pm.UnusePosition(u.req.Handler, market.PositionKey{
			Market:    u.req.Market,
			TickLower: u.req.TickLower,
			TickUpper: u.req.TickUpper,
			Liquidity: new(uint256.Int).Set(u.req.Liquidity),
		}); err != nil {
			e.log.Warn().Err(err).Str("market", u.req.Market).Msg("mint unwind failed")
		}
	}
}

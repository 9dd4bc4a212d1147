package engine

import (
	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/logging"
	"clamm-options/internal/models"
	"clamm-options/internal/pricemath"
)

// Settle unwinds an expired option's remaining collateral back into its
// source positions. Only approved settlers may call it. liquidities is
// index-aligned with the option's legs; a zero entry settles the leg's
// entire remaining liquidity.
//
// Per leg, the repayment owed to the position manager is whatever the
// position resolves to at the current price. A leg still entirely in the
// collateral asset is handed straight back. A leg entirely converted to
// the counter asset is restored by swapping the collateral; any swap
// surplus stays with the engine. Only a partially converted leg pays the
// settler: the engine keeps the collateral share, swaps the remainder,
// and hands the settler what the swap returned beyond the repayment.
func (e *Engine) Settle(caller string, id models.OptionID, liquidities []*uint256.Int) error {
	release, err := e.g.enter()
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.settle(caller, id, liquidities); err != nil {
		return errs.NewOptionError(uint64(id), "settle", err)
	}
	return nil
}

func (e *Engine) settle(caller string, id models.OptionID, liquidities []*uint256.Int) error {
	opt, ok := e.options[id]
	if !ok {
		return errs.ErrOptionNotFound
	}
	if !e.approvedSettlers[caller] {
		return errs.ErrNotApprovedSettler
	}
	if len(liquidities) != len(opt.Legs) {
		return errs.Wrapf(errs.ErrLegCountMismatch, "got %d, want %d", len(liquidities), len(opt.Legs))
	}
	if !opt.Expired(e.now()) {
		return errs.ErrOptionNotExpired
	}

	plans, err := e.planSettle(opt, liquidities)
	if err != nil {
		return err
	}

	// Swap before touching the position manager, so a failed swap can be
	// reversed with no leg partially retired.
	var fills []swapFill
	received := make([]*uint256.Int, len(plans))
	for i, plan := range plans {
		if plan.swapIn.IsZero() {
			continue
		}
		prev := e.ledger.BalanceOf(plan.counterAsset, e.account)
		if err := e.ledger.Approve(plan.collAsset, e.account, e.swapper.Account(), plan.swapIn); err != nil {
			e.unwindSwaps(fills)
			return err
		}
		if err := e.swapper.OnSwapReceived(plan.collAsset, plan.counterAsset, plan.swapIn, nil); err != nil {
			e.unwindSwaps(fills)
			return err
		}
		after := e.ledger.BalanceOf(plan.counterAsset, e.account)
		received[i] = new(uint256.Int).Sub(after, prev)
		fills = append(fills, swapFill{assetIn: plan.collAsset, assetOut: plan.counterAsset, received: received[i]})

		if received[i].Lt(plan.counterAmt) {
			e.unwindSwaps(fills)
			need := new(uint256.Int).Add(prev, plan.counterAmt)
			return errs.NewAccountingError(plan.counterAsset, need.Dec(), after.Dec(), errs.ErrInsufficientSwapReturn)
		}
	}

	// Retire the liquidity. A leg is debited only once its repayment is
	// back at the manager, so the records always match what is still
	// withdrawable even if a leg fails here.
	staged := cloneLegs(opt.Legs)
	totalDelta := new(uint256.Int)
	for i, plan := range plans {
		leg := opt.Legs[plan.index]
		if !plan.collAmt.IsZero() {
			if err := e.ledger.Approve(plan.collAsset, e.account, e.pm.Account(), plan.collAmt); err != nil {
				opt.Legs = staged
				return err
			}
		}
		if !plan.counterAmt.IsZero() {
			if err := e.ledger.Approve(plan.counterAsset, e.account, e.pm.Account(), plan.counterAmt); err != nil {
				opt.Legs = staged
				return err
			}
		}
		if err := e.pm.UnusePosition(leg.Handler, positionKey(leg, plan.liquidity)); err != nil {
			opt.Legs = staged
			return err
		}
		if err := debitLeg(staged, plan.index, plan.liquidity); err != nil {
			opt.Legs = staged
			return err
		}
		if plan.paySettler {
			totalDelta.Add(totalDelta, new(uint256.Int).Sub(received[i], plan.counterAmt))
		}
	}
	opt.Legs = staged

	// All legs share the option's market, so the surplus is one asset.
	if !totalDelta.IsZero() {
		if err := e.ledger.Transfer(plans[0].counterAsset, e.account, caller, totalDelta); err != nil {
			return err
		}
	}

	logging.LogSettle(e.log, uint64(id), caller, totalDelta.Dec())
	e.emit(models.Event{
		Kind:     models.EventSettle,
		OptionID: id,
		Caller:   caller,
		Profit:   totalDelta,
	})
	return nil
}

// settlePlan is one leg's precomputed repayment. A leg still entirely
// in the collateral asset swaps nothing; a fully converted leg swaps
// all its collateral and the surplus is retained; only a partially
// converted leg pays the settler.
type settlePlan struct {
	index        int
	liquidity    *uint256.Int
	collAsset    string
	counterAsset string
	collAmt      *uint256.Int // repayment owed on the collateral side
	counterAmt   *uint256.Int // repayment owed on the counter side
	swapIn       *uint256.Int // collateral to swap for the counter repayment
	paySettler   bool
}

// planSettle computes every leg's repayment split up front so a
// rejected settlement moves no assets at all.
func (e *Engine) planSettle(opt *models.Option, liquidities []*uint256.Int) ([]settlePlan, error) {
	var plans []settlePlan
	for i, leg := range opt.Legs {
		liq := liquidities[i]
		if liq == nil || liq.IsZero() {
			liq = leg.Liquidity
		}
		if liq.IsZero() {
			continue
		}
		if leg.Liquidity.Lt(liq) {
			return nil, errs.Wrapf(errs.ErrLiquidityUnderflow,
				"leg %d has %s, settle %s", i, leg.Liquidity.Dec(), liq.Dec())
		}
		liq = new(uint256.Int).Set(liq)

		pool, err := e.pools.Pool(leg.Market)
		if err != nil {
			return nil, err
		}
		sqrtA, err := pricemath.SqrtRatioAtTick(leg.TickLower)
		if err != nil {
			return nil, err
		}
		sqrtB, err := pricemath.SqrtRatioAtTick(leg.TickUpper)
		if err != nil {
			return nil, err
		}
		a0, a1, err := pricemath.AmountsForLiquidity(pool.SqrtPriceX96, sqrtA, sqrtB, liq)
		if err != nil {
			return nil, err
		}
		collAmt, counterAmt := a0, a1
		if !pool.CollateralIsToken0(opt.IsCall) {
			collAmt, counterAmt = a1, a0
		}

		var fullColl *uint256.Int
		if pool.CollateralIsToken0(opt.IsCall) {
			fullColl, err = pricemath.Amount0ForLiquidity(sqrtA, sqrtB, liq)
		} else {
			fullColl, err = pricemath.Amount1ForLiquidity(sqrtA, sqrtB, liq)
		}
		if err != nil {
			return nil, err
		}

		plan := settlePlan{
			index:        i,
			liquidity:    liq,
			collAsset:    pool.CollateralAsset(opt.IsCall),
			counterAsset: pool.CounterAsset(opt.IsCall),
			collAmt:      collAmt,
			counterAmt:   counterAmt,
			swapIn:       new(uint256.Int),
		}
		switch {
		case counterAmt.IsZero():
			// Never crossed: the collateral goes back as is.
		case collAmt.IsZero():
			// Fully crossed: swap everything, surplus retained.
			plan.swapIn = fullColl
		default:
			// Partially crossed: swap the converted share only.
			plan.swapIn = new(uint256.Int).Sub(fullColl, collAmt)
			plan.paySettler = true
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

package engine

import (
	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/logging"
	"clamm-options/internal/models"
	"clamm-options/internal/pricemath"
)

// exercisePlan is one leg's precomputed asset movement. All plans are
// validated before the first transfer so a rejected exercise moves no
// assets at all.
type exercisePlan struct {
	index     int
	liquidity *uint256.Int
	assetIn   string // collateral handed to the swapper
	assetOut  string // counter asset received back
	amountIn  *uint256.Int
	amountReq *uint256.Int // owed back to the position manager
}

// swapFill records one completed swap so a failing call can reverse it.
type swapFill struct {
	assetIn  string
	assetOut string
	received *uint256.Int
}

// unwindSwaps swaps completed fills back so a failed multi-leg call
// leaves the engine's collateral whole. Best effort: a reversal failure
// is logged, not returned, because the original error is the one the
// caller needs.
func (e *Engine) unwindSwaps(fills []swapFill) {
	for _, fill := range fills {
		if fill.received == nil || fill.received.IsZero() {
			continue
		}
		if err := e.ledger.Approve(fill.assetOut, e.account, e.swapper.Account(), fill.received); err != nil {
			e.log.Warn().Err(err).Str("asset", fill.assetOut).Msg("swap unwind approve failed")
			continue
		}
		if err := e.swapper.OnSwapReceived(fill.assetOut, fill.assetIn, fill.received, nil); err != nil {
			e.log.Warn().Err(err).Str("asset", fill.assetOut).Msg("swap unwind failed")
		}
	}
}

// Exercise converts an in-the-money option into profit before expiry.
// liquidities selects how much of each leg to exercise, index-aligned
// with the option's legs; a zero entry skips that leg. For every
// exercised leg the market price must have crossed the leg's full range,
// so the position manager takes repayment entirely in the counter asset
// and the collateral can be swapped in full. The swap return above the
// repayment is paid to the caller.
func (e *Engine) Exercise(caller string, id models.OptionID, liquidities []*uint256.Int) error {
	release, err := e.g.enter()
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.exercise(caller, id, liquidities); err != nil {
		return errs.NewOptionError(uint64(id), "exercise", err)
	}
	return nil
}

func (e *Engine) exercise(caller string, id models.OptionID, liquidities []*uint256.Int) error {
	opt, ok := e.options[id]
	if !ok {
		return errs.ErrOptionNotFound
	}
	if len(liquidities) != len(opt.Legs) {
		return errs.Wrapf(errs.ErrLegCountMismatch, "got %d, want %d", len(liquidities), len(opt.Legs))
	}
	owner := e.owners[id]
	if caller != owner && !e.delegates[owner][caller] {
		return errs.ErrNotOwnerOrDelegate
	}
	if opt.Expired(e.now()) {
		return errs.ErrOptionExpired
	}

	plans, err := e.planExercise(opt, liquidities)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		return errs.ErrNoLegs
	}

	// Swap every leg's collateral before touching the position manager:
	// a swap that fails mid-call can then be reversed leg by leg with no
	// position partially retired.
	var fills []swapFill
	received := make([]*uint256.Int, len(plans))
	for i, plan := range plans {
		prev := e.ledger.BalanceOf(plan.assetOut, e.account)
		if err := e.ledger.Approve(plan.assetIn, e.account, e.swapper.Account(), plan.amountIn); err != nil {
			e.unwindSwaps(fills)
			return err
		}
		if err := e.swapper.OnSwapReceived(plan.assetIn, plan.assetOut, plan.amountIn, nil); err != nil {
			e.unwindSwaps(fills)
			return err
		}
		after := e.ledger.BalanceOf(plan.assetOut, e.account)
		received[i] = new(uint256.Int).Sub(after, prev)
		fills = append(fills, swapFill{assetIn: plan.assetIn, assetOut: plan.assetOut, received: received[i]})

		if received[i].Lt(plan.amountReq) {
			e.unwindSwaps(fills)
			need := new(uint256.Int).Add(prev, plan.amountReq)
			return errs.NewAccountingError(plan.assetOut, need.Dec(), after.Dec(), errs.ErrInsufficientSwapReturn)
		}
	}

	// Retire the liquidity. A leg is debited only once its repayment is
	// back at the manager, so the records always match what is still
	// withdrawable even if a leg fails here.
	staged := cloneLegs(opt.Legs)
	totalProfit := new(uint256.Int)
	totalCollateral := new(uint256.Int)
	for i, plan := range plans {
		leg := opt.Legs[plan.index]
		if err := e.ledger.Approve(plan.assetOut, e.account, e.pm.Account(), plan.amountReq); err != nil {
			opt.Legs = staged
			return err
		}
		if err := e.pm.UnusePosition(leg.Handler, positionKey(leg, plan.liquidity)); err != nil {
			opt.Legs = staged
			return err
		}
		if err := debitLeg(staged, plan.index, plan.liquidity); err != nil {
			opt.Legs = staged
			return err
		}
		totalProfit.Add(totalProfit, new(uint256.Int).Sub(received[i], plan.amountReq))
		totalCollateral.Add(totalCollateral, plan.amountIn)
	}
	opt.Legs = staged

	// All legs share the option's market, so the profit is one asset.
	if !totalProfit.IsZero() {
		if err := e.ledger.Transfer(plans[0].assetOut, e.account, caller, totalProfit); err != nil {
			return err
		}
	}

	logging.LogExercise(e.log, uint64(id), caller, totalProfit.Dec(), totalCollateral.Dec())
	e.emit(models.Event{
		Kind:       models.EventExercise,
		OptionID:   id,
		Caller:     caller,
		Profit:     totalProfit,
		Collateral: totalCollateral,
	})
	return nil
}

// planExercise computes every leg's amounts up front and rejects legs
// whose range the market price has not fully crossed.
func (e *Engine) planExercise(opt *models.Option, liquidities []*uint256.Int) ([]exercisePlan, error) {
	var plans []exercisePlan
	for i, leg := range opt.Legs {
		liq := liquidities[i]
		if liq == nil || liq.IsZero() {
			continue
		}
		if leg.Liquidity.Lt(liq) {
			return nil, errs.Wrapf(errs.ErrLiquidityUnderflow,
				"leg %d has %s, exercise %s", i, leg.Liquidity.Dec(), liq.Dec())
		}
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
		collNow, counterNow := a0, a1
		if !pool.CollateralIsToken0(opt.IsCall) {
			collNow, counterNow = a1, a0
		}
		if !collNow.IsZero() {
			return nil, errs.Wrapf(errs.ErrStrikeNotCrossed, "leg %d", i)
		}

		// The collateral locked at mint is the full-range single-sided
		// amount on the collateral asset; that is what gets swapped.
		var amountIn *uint256.Int
		if pool.CollateralIsToken0(opt.IsCall) {
			amountIn, err = pricemath.Amount0ForLiquidity(sqrtA, sqrtB, liq)
		} else {
			amountIn, err = pricemath.Amount1ForLiquidity(sqrtA, sqrtB, liq)
		}
		if err != nil {
			return nil, err
		}

		plans = append(plans, exercisePlan{
			index:     i,
			liquidity: new(uint256.Int).Set(liq),
			assetIn:   pool.CollateralAsset(opt.IsCall),
			assetOut:  pool.CounterAsset(opt.IsCall),
			amountIn:  amountIn,
			amountReq: counterNow,
		})
	}
	return plans, nil
}

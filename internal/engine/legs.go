package engine

import (
	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/models"
)

// Leg accounting. An option's leg list is fixed at mint or split time;
// only the committed liquidity quantities change afterwards, and a
// quantity never goes below zero. Lifecycle operations stage their
// debits on a cloned leg slice and swap it in only after every leg of
// the operation has completed, so a failing call leaves the option's
// records untouched.

// commitLeg validates a proposed leg against the option's strike bound
// and the market allowlist. The leg whose role is "at the strike" must
// sit exactly on the option's strike-side tick bound: the upper bound
// for calls, the lower bound for puts.
func (e *Engine) commitLeg(req models.LegRequest, strikeLower, strikeUpper int, isCall bool) error {
	if !e.approvedMarkets[req.Market] {
		return errs.Wrapf(errs.ErrMarketNotApproved, "market %s", req.Market)
	}
	if isCall {
		if req.TickUpper != strikeUpper {
			return errs.Wrapf(errs.ErrLegStrikeMismatch, "leg upper %d != strike %d", req.TickUpper, strikeUpper)
		}
	} else {
		if req.TickLower != strikeLower {
			return errs.Wrapf(errs.ErrLegStrikeMismatch, "leg lower %d != strike %d", req.TickLower, strikeLower)
		}
	}
	return nil
}

// debitLeg subtracts quantity from a staged leg, failing on underflow.
func debitLeg(legs []models.Leg, i int, quantity *uint256.Int) error {
	if legs[i].Liquidity.Lt(quantity) {
		return errs.Wrapf(errs.ErrLiquidityUnderflow,
			"leg %d has %s, debit %s", i, legs[i].Liquidity.Dec(), quantity.Dec())
	}
	legs[i].Liquidity.Sub(legs[i].Liquidity, quantity)
	return nil
}

// LegCount returns the number of legs of an option.
func (e *Engine) LegCount(id models.OptionID) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	opt, ok := e.options[id]
	if !ok {
		return 0, errs.ErrOptionNotFound
	}
	return len(opt.Legs), nil
}

// Legs returns copies of an option's legs in order.
func (e *Engine) Legs(id models.OptionID) ([]models.Leg, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	opt, ok := e.options[id]
	if !ok {
		return nil, errs.ErrOptionNotFound
	}
	return cloneLegs(opt.Legs), nil
}

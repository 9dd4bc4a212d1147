package engine

import (
	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/logging"
	"clamm-options/internal/models"
)

// Split carves liquidity out of an option into a new sibling option
// owned by the recipient. liquidities is index-aligned with the source
// option's legs; the child receives exactly those quantities on legs
// with the same handlers, markets and tick ranges. No assets move: the
// collateral stays where it is and only the leg bookkeeping changes.
// Splitting an expired option is allowed.
func (e *Engine) Split(caller string, id models.OptionID, to string, liquidities []*uint256.Int) (models.OptionID, error) {
	release, err := e.g.enter()
	if err != nil {
		return 0, err
	}
	defer release()

	e.mu.Lock()
	defer e.mu.Unlock()

	childID, err := e.split(caller, id, to, liquidities)
	if err != nil {
		return 0, errs.NewOptionError(uint64(id), "split", err)
	}
	return childID, nil
}

func (e *Engine) split(caller string, id models.OptionID, to string, liquidities []*uint256.Int) (models.OptionID, error) {
	opt, ok := e.options[id]
	if !ok {
		return 0, errs.ErrOptionNotFound
	}
	if caller != e.owners[id] {
		return 0, errs.ErrNotOwner
	}
	if len(liquidities) != len(opt.Legs) {
		return 0, errs.Wrapf(errs.ErrLegCountMismatch, "got %d, want %d", len(liquidities), len(opt.Legs))
	}

	staged := cloneLegs(opt.Legs)
	childLegs := make([]models.Leg, len(opt.Legs))
	moved := new(uint256.Int)
	for i, leg := range opt.Legs {
		liq := liquidities[i]
		if liq == nil {
			liq = new(uint256.Int)
		}
		if err := debitLeg(staged, i, liq); err != nil {
			return 0, err
		}
		childLegs[i] = models.Leg{
			Handler:   leg.Handler,
			Market:    leg.Market,
			TickLower: leg.TickLower,
			TickUpper: leg.TickUpper,
			Liquidity: new(uint256.Int).Set(liq),
		}
		moved.Add(moved, liq)
	}
	opt.Legs = staged

	childID := models.OptionID(e.nextID)
	e.nextID++
	e.options[childID] = &models.Option{
		ID:        childID,
		TickLower: opt.TickLower,
		TickUpper: opt.TickUpper,
		Expiry:    opt.Expiry,
		IsCall:    opt.IsCall,
		Legs:      childLegs,
	}
	e.owners[childID] = to

	logging.LogSplit(e.log, uint64(id), uint64(childID), to)
	e.emit(models.Event{
		Kind:        models.EventSplit,
		OptionID:    id,
		Caller:      caller,
		NewOptionID: childID,
		Recipient:   to,
		Notional:    moved,
	})
	return childID, nil
}

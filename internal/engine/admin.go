package engine

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/logging"
	"clamm-options/internal/market"
	"clamm-options/internal/models"
)

// Admin surface. Every mutation is operator-only and takes effect for
// subsequent operations immediately; in-flight semantics never change
// because the guard serializes admin calls with the lifecycle.

func (e *Engine) requireOperator(caller string) error {
	if caller != e.operator {
		return errs.ErrNotOperator
	}
	return nil
}

// SetVolatilities registers the volatility id to use for each
// time-to-live. The two slices are index-aligned. An id of zero clears
// the entry, making that time-to-live unmintable.
func (e *Engine) SetVolatilities(caller string, ttls []time.Duration, ids []uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if len(ttls) != len(ids) {
		return errs.NewAdminError("volatilities",
			fmt.Sprintf("%d ttls, %d ids", len(ttls), len(ids)), errs.ErrArrayLenMismatch)
	}
	for i, ttl := range ttls {
		if ids[i] == 0 {
			delete(e.ttlVols, ttl)
		} else {
			e.ttlVols[ttl] = ids[i]
		}
		logging.LogAdmin(e.log, "volatility", fmt.Sprintf("ttl=%s id=%d", ttl, ids[i]))
		e.emit(models.Event{
			Kind:   models.EventVolUpdate,
			Caller: caller,
			Field:  ttl.String(),
			Value:  fmt.Sprintf("%d", ids[i]),
		})
	}
	return nil
}

// VolatilityID returns the volatility id registered for a time-to-live,
// or zero when unset.
func (e *Engine) VolatilityID(ttl time.Duration) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ttlVols[ttl]
}

// SetMarketApproved adds or removes a market from the collateral
// allowlist. Removal only blocks new mints; existing options keep their
// legs and remain exercisable and settleable.
func (e *Engine) SetMarketApproved(caller, mkt string, approved bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if approved {
		e.approvedMarkets[mkt] = true
	} else {
		delete(e.approvedMarkets, mkt)
	}
	logging.LogAdmin(e.log, "market", fmt.Sprintf("%s approved=%t", mkt, approved))
	e.emit(models.Event{
		Kind:   models.EventAddressUpdate,
		Caller: caller,
		Field:  "market:" + mkt,
		Value:  fmt.Sprintf("%t", approved),
	})
	return nil
}

// IsMarketApproved reports whether a market may source collateral.
func (e *Engine) IsMarketApproved(mkt string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.approvedMarkets[mkt]
}

// SetSettlerApproved adds or removes a settler.
func (e *Engine) SetSettlerApproved(caller, settler string, approved bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if approved {
		e.approvedSettlers[settler] = true
	} else {
		delete(e.approvedSettlers, settler)
	}
	logging.LogAdmin(e.log, "settler", fmt.Sprintf("%s approved=%t", settler, approved))
	e.emit(models.Event{
		Kind:   models.EventAddressUpdate,
		Caller: caller,
		Field:  "settler:" + settler,
		Value:  fmt.Sprintf("%t", approved),
	})
	return nil
}

// IsSettlerApproved reports whether an account may settle.
func (e *Engine) IsSettlerApproved(settler string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.approvedSettlers[settler]
}

// SetFeeRecipient changes where protocol fees go. An empty recipient
// disables fee collection entirely.
func (e *Engine) SetFeeRecipient(caller, recipient string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.feeRecipient = recipient
	logging.LogAdmin(e.log, "fee_recipient", recipient)
	e.emit(models.Event{
		Kind:   models.EventAddressUpdate,
		Caller: caller,
		Field:  "fee_recipient",
		Value:  recipient,
	})
	return nil
}

// FeeRecipient returns the current fee recipient account.
func (e *Engine) FeeRecipient() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeRecipient
}

// SetPricer swaps the pricing oracle. Options already minted keep the
// premium they paid; only future mints reprice.
func (e *Engine) SetPricer(caller string, pricer market.OptionPricer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if pricer == nil {
		return errs.NewAdminError("pricer", "pricer must not be nil", nil)
	}
	e.pricer = pricer
	logging.LogAdmin(e.log, "pricer", "replaced")
	e.emit(models.Event{
		Kind:   models.EventAddressUpdate,
		Caller: caller,
		Field:  "pricer",
		Value:  "replaced",
	})
	return nil
}

// SetFeeStrategy swaps the fee schedule. A nil strategy disables fees.
func (e *Engine) SetFeeStrategy(caller string, fees market.FeeStrategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.fees = fees
	logging.LogAdmin(e.log, "fee_strategy", "replaced")
	e.emit(models.Event{
		Kind:   models.EventAddressUpdate,
		Caller: caller,
		Field:  "fee_strategy",
		Value:  "replaced",
	})
	return nil
}

// SetMetadataFetcher swaps the metadata source used by TokenURI.
func (e *Engine) SetMetadataFetcher(caller string, meta market.MetadataFetcher) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.meta = meta
	logging.LogAdmin(e.log, "metadata_fetcher", "replaced")
	e.emit(models.Event{
		Kind:   models.EventAddressUpdate,
		Caller: caller,
		Field:  "metadata_fetcher",
		Value:  "replaced",
	})
	return nil
}

// EmergencySweep transfers the engine's entire balance of one asset to
// the operator. It exists for incident recovery and bypasses all option
// accounting; leg records are not adjusted.
func (e *Engine) EmergencySweep(caller, asset string) (*uint256.Int, error) {
	release, err := e.g.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperator(caller); err != nil {
		return nil, err
	}
	balance := e.ledger.BalanceOf(asset, e.account)
	if balance.IsZero() {
		return balance, nil
	}
	if err := e.ledger.Transfer(asset, e.account, e.operator, balance); err != nil {
		return nil, err
	}
	logging.LogAdmin(e.log, "sweep", fmt.Sprintf("%s %s", asset, balance.Dec()))
	e.emit(models.Event{
		Kind:   models.EventAddressUpdate,
		Caller: caller,
		Field:  "sweep:" + asset,
		Value:  balance.Dec(),
	})
	return balance, nil
}

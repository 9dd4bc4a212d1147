package engine

import (
	errs "clamm-options/internal/errors"
	"clamm-options/internal/models"
)

// Ownership and delegation. Each option has exactly one owner. An owner
// may grant delegates; a delegation covers every option the grantor
// owns, now or later, until revoked. Delegates may exercise but never
// split or transfer.

// Owner returns the current owner of an option.
func (e *Engine) Owner(id models.OptionID) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	owner, ok := e.owners[id]
	if !ok {
		return "", errs.ErrOptionNotFound
	}
	return owner, nil
}

// Transfer moves ownership of an option to another account. Only the
// current owner may transfer. The grantor's delegations do not follow
// the option; the new owner starts with their own delegate set.
func (e *Engine) Transfer(caller string, id models.OptionID, to string) error {
	release, err := e.g.enter()
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	defer e.mu.Unlock()

	owner, ok := e.owners[id]
	if !ok {
		return errs.ErrOptionNotFound
	}
	if caller != owner {
		return errs.ErrNotOwner
	}
	e.owners[id] = to

	e.log.Info().
		Str("event", "transfer").
		Uint64("option_id", uint64(id)).
		Str("from", owner).
		Str("to", to).
		Msg("Option transferred")
	return nil
}

// SetDelegate grants or revokes a delegate for every option the caller
// owns. Granting twice or revoking an absent delegate is a no-op.
func (e *Engine) SetDelegate(caller, delegate string, approved bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if approved {
		if e.delegates[caller] == nil {
			e.delegates[caller] = make(map[string]bool)
		}
		e.delegates[caller][delegate] = true
		return
	}
	delete(e.delegates[caller], delegate)
	if len(e.delegates[caller]) == 0 {
		delete(e.delegates, caller)
	}
}

// IsDelegate reports whether delegate acts for owner.
func (e *Engine) IsDelegate(owner, delegate string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.delegates[owner][delegate]
}

// TokenURI returns the descriptive document for an option, or the empty
// string when no metadata fetcher is configured.
func (e *Engine) TokenURI(id models.OptionID) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.options[id]; !ok {
		return "", errs.ErrOptionNotFound
	}
	if e.meta == nil {
		return "", nil
	}
	return e.meta.TokenURI(uint64(id)), nil
}

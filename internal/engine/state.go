package engine

import (
	"time"

	"clamm-options/internal/models"
)

// State is a serializable snapshot of everything the engine would need
// to resume after a restart. Collaborators and admin identities come
// from configuration, not the snapshot.
type State struct {
	NextID           uint64
	Options          []models.Option
	Owners           map[models.OptionID]string
	Delegates        map[string][]string
	TTLVols          map[time.Duration]uint64
	ApprovedMarkets  []string
	ApprovedSettlers []string
	FeeRecipient     string

	// Initialized distinguishes a persisted snapshot from a zero value,
	// so an empty FeeRecipient restores as "fees disabled" rather than
	// "never configured".
	Initialized bool
}

// Snapshot captures the engine's current state.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := State{
		Initialized:  true,
		NextID:       e.nextID,
		Options:      make([]models.Option, 0, len(e.options)),
		Owners:       make(map[models.OptionID]string, len(e.owners)),
		Delegates:    make(map[string][]string, len(e.delegates)),
		TTLVols:      make(map[time.Duration]uint64, len(e.ttlVols)),
		FeeRecipient: e.feeRecipient,
	}
	for id := models.OptionID(1); uint64(id) < e.nextID; id++ {
		if opt, ok := e.options[id]; ok {
			st.Options = append(st.Options, cloneOption(opt))
		}
	}
	for id, owner := range e.owners {
		st.Owners[id] = owner
	}
	for owner, set := range e.delegates {
		for delegate := range set {
			st.Delegates[owner] = append(st.Delegates[owner], delegate)
		}
	}
	for ttl, vid := range e.ttlVols {
		st.TTLVols[ttl] = vid
	}
	for mkt := range e.approvedMarkets {
		st.ApprovedMarkets = append(st.ApprovedMarkets, mkt)
	}
	for settler := range e.approvedSettlers {
		st.ApprovedSettlers = append(st.ApprovedSettlers, settler)
	}
	return st
}

// Restore replaces the engine's state with a snapshot. Intended for
// startup, before the engine serves callers.
func (e *Engine) Restore(st State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID = st.NextID
	if e.nextID == 0 {
		e.nextID = 1
	}
	e.options = make(map[models.OptionID]*models.Option, len(st.Options))
	for i := range st.Options {
		opt := cloneOption(&st.Options[i])
		e.options[opt.ID] = &opt
		if uint64(opt.ID) >= e.nextID {
			e.nextID = uint64(opt.ID) + 1
		}
	}
	e.owners = make(map[models.OptionID]string, len(st.Owners))
	for id, owner := range st.Owners {
		e.owners[id] = owner
	}
	e.delegates = make(map[string]map[string]bool, len(st.Delegates))
	for owner, list := range st.Delegates {
		set := make(map[string]bool, len(list))
		for _, delegate := range list {
			set[delegate] = true
		}
		e.delegates[owner] = set
	}
	e.ttlVols = make(map[time.Duration]uint64, len(st.TTLVols))
	for ttl, vid := range st.TTLVols {
		e.ttlVols[ttl] = vid
	}
	e.approvedMarkets = make(map[string]bool, len(st.ApprovedMarkets))
	for _, mkt := range st.ApprovedMarkets {
		e.approvedMarkets[mkt] = true
	}
	e.approvedSettlers = make(map[string]bool, len(st.ApprovedSettlers))
	for _, settler := range st.ApprovedSettlers {
		e.approvedSettlers[settler] = true
	}
	if st.Initialized {
		e.feeRecipient = st.FeeRecipient
	}
}

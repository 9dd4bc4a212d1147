package store

import (
	"context"

	"github.com/rs/zerolog"

	"clamm-options/internal/models"
)

// Journal is a hub consumer that appends every engine event to the
// persistent journal. The hub invokes consumers synchronously, so
// entries land in publish order.
type Journal struct {
	store *SQLiteStore
	log   zerolog.Logger
}

// NewJournal creates a journal consumer backed by the store.
func NewJournal(store *SQLiteStore, log zerolog.Logger) *Journal {
	return &Journal{store: store, log: log}
}

// OnEvent implements stream.Consumer. A write failure is logged and
// dropped; the journal is an observation sink, not an engine invariant.
func (j *Journal) OnEvent(ev models.Event) {
	if err := j.store.AppendEvent(context.Background(), ev); err != nil {
		j.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("journal append failed")
	}
}

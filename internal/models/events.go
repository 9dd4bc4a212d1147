package models

import (
	"time"

	"github.com/holiman/uint256"
)

// EventKind names one of the observable engine events.
type EventKind string

const (
	EventMint          EventKind = "mint"
	EventExercise      EventKind = "exercise"
	EventSettle        EventKind = "settle"
	EventSplit         EventKind = "split"
	EventVolUpdate     EventKind = "vol_update"
	EventAddressUpdate EventKind = "address_update"
)

// Event is one entry of the append-only observation log. It is a
// side channel for external subscribers and carries no state the engine
// itself depends on.
type Event struct {
	Kind     EventKind
	At       time.Time
	OptionID OptionID
	Caller   string

	// Mint fields.
	Premium  *uint256.Int
	Fee      *uint256.Int
	Notional *uint256.Int

	// Exercise / settle fields.
	Profit     *uint256.Int
	Collateral *uint256.Int

	// Split fields.
	NewOptionID OptionID
	Recipient   string

	// Admin fields.
	Field string // which address/table changed
	Value string
}

// Package models defines the core data types shared across the engine.
package models

import (
	"time"

	"github.com/holiman/uint256"
)

// OptionID identifies an option record. IDs are minted monotonically
// starting at 1; zero is never a valid id.
type OptionID uint64

// Leg is one unit of collateral sourced from one tick-range position.
// A leg belongs to exactly one option; only its Liquidity changes after
// the option is created.
type Leg struct {
	Handler   string       // position-manager strategy used to move the liquidity
	Market    string       // pool the liquidity lives in
	TickLower int          // lower tick bound of the range
	TickUpper int          // upper tick bound of the range
	Liquidity *uint256.Int // liquidity still committed to the option
}

// Clone returns a deep copy of the leg.
func (l Leg) Clone() Leg {
	return Leg{
		Handler:   l.Handler,
		Market:    l.Market,
		TickLower: l.TickLower,
		TickUpper: l.TickUpper,
		Liquidity: new(uint256.Int).Set(l.Liquidity),
	}
}

// Option is a minted option position. Everything but the per-leg
// liquidity quantities is immutable after creation. An option whose legs
// have all reached zero liquidity is inert but never deleted.
type Option struct {
	ID        OptionID
	TickLower int // strike bound, lower side
	TickUpper int // strike bound, upper side
	Expiry    time.Time
	IsCall    bool
	Legs      []Leg
}

// StrikeTick returns the tick bound that defines the option's strike:
// the upper bound for calls, the lower bound for puts.
func (o *Option) StrikeTick() int {
	if o.IsCall {
		return o.TickUpper
	}
	return o.TickLower
}

// Expired reports whether the option has expired as of now.
func (o *Option) Expired(now time.Time) bool {
	return !now.Before(o.Expiry)
}

// TotalLiquidity sums the liquidity still committed across all legs.
func (o *Option) TotalLiquidity() *uint256.Int {
	total := new(uint256.Int)
	for i := range o.Legs {
		total.Add(total, o.Legs[i].Liquidity)
	}
	return total
}

// LegRequest describes one collateral source proposed at mint time.
type LegRequest struct {
	Handler   string
	Market    string
	TickLower int
	TickUpper int
	Liquidity *uint256.Int
}

// MintParams carries everything a mint needs besides the caller identity.
type MintParams struct {
	Legs      []LegRequest
	TickLower int           // option strike bounds
	TickUpper int
	TTL       time.Duration // time to expiry; must map to a registered volatility
	IsCall    bool
	MaxCost   *uint256.Int // premium + fee must not exceed this
}

// Package engine implements the option lifecycle state machine: minting
// options against withdrawn tick-range liquidity, exercising them before
// expiry, settling them after expiry, and splitting them into sibling
// positions. The engine owns three ledgers that every operation must
// keep consistent: the per-leg liquidity bookkeeping, the engine's own
// asset balances, and the external position manager's accounting.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/market"
	"clamm-options/internal/models"
	"clamm-options/internal/stream"
)

// Config carries the engine's collaborators and admin bootstrap values.
type Config struct {
	Logger zerolog.Logger
	Hub    *stream.Hub // optional; nil disables event emission

	Ledger    market.AssetLedger
	Positions market.PositionManager
	Pools     market.PoolRegistry
	Pricer    market.OptionPricer
	Swapper   market.SwapExecutor

	FeeStrategy market.FeeStrategy     // optional
	Metadata    market.MetadataFetcher // optional

	Account      string // the engine's own ledger account
	Operator     string // privileged admin account
	FeeRecipient string // optional; empty disables the protocol fee

	Now func() time.Time // optional clock override
}

// Engine is the option issuance-and-settlement engine.
type Engine struct {
	g   guard
	mu  sync.RWMutex
	log zerolog.Logger
	hub *stream.Hub
	now func() time.Time

	ledger  market.AssetLedger
	pm      market.PositionManager
	pools   market.PoolRegistry
	pricer  market.OptionPricer
	swapper market.SwapExecutor
	fees    market.FeeStrategy
	meta    market.MetadataFetcher
	account string

	operator     string
	feeRecipient string

	ttlVols          map[time.Duration]uint64
	approvedMarkets  map[string]bool
	approvedSettlers map[string]bool

	nextID    uint64
	options   map[models.OptionID]*models.Option
	owners    map[models.OptionID]string
	delegates map[string]map[string]bool
}

// New creates an engine. Ledger, Positions, Pools, Pricer, Account and
// Operator are required.
func New(cfg Config) (*Engine, error) {
	if cfg.Ledger == nil || cfg.Positions == nil || cfg.Pools == nil || cfg.Pricer == nil || cfg.Swapper == nil {
		return nil, fmt.Errorf("engine: missing collaborator")
	}
	if cfg.Account == "" || cfg.Operator == "" {
		return nil, fmt.Errorf("engine: account and operator are required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		log:              cfg.Logger,
		hub:              cfg.Hub,
		now:              now,
		ledger:           cfg.Ledger,
		pm:               cfg.Positions,
		pools:            cfg.Pools,
		pricer:           cfg.Pricer,
		swapper:          cfg.Swapper,
		fees:             cfg.FeeStrategy,
		meta:             cfg.Metadata,
		account:          cfg.Account,
		operator:         cfg.Operator,
		feeRecipient:     cfg.FeeRecipient,
		ttlVols:          make(map[time.Duration]uint64),
		approvedMarkets:  make(map[string]bool),
		approvedSettlers: make(map[string]bool),
		nextID:           1,
		options:          make(map[models.OptionID]*models.Option),
		owners:           make(map[models.OptionID]string),
		delegates:        make(map[string]map[string]bool),
	}, nil
}

// Account returns the engine's own ledger account.
func (e *Engine) Account() string { return e.account }

// Option returns a copy of an option record.
func (e *Engine) Option(id models.OptionID) (models.Option, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	opt, ok := e.options[id]
	if !ok {
		return models.Option{}, errs.ErrOptionNotFound
	}
	return cloneOption(opt), nil
}

// Options returns copies of all option records in id order.
func (e *Engine) Options() []models.Option {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Option, 0, len(e.options))
	for id := models.OptionID(1); uint64(id) < e.nextID; id++ {
		if opt, ok := e.options[id]; ok {
			out = append(out, cloneOption(opt))
		}
	}
	return out
}

// emit publishes an event to the hub, stamping it with the clock.
func (e *Engine) emit(ev models.Event) {
	ev.At = e.now()
	if e.hub != nil {
		e.hub.Publish(ev)
	}
}

func cloneOption(opt *models.Option) models.Option {
	out := *opt
	out.Legs = cloneLegs(opt.Legs)
	return out
}

func cloneLegs(legs []models.Leg) []models.Leg {
	out := make([]models.Leg, len(legs))
	for i := range legs {
		out[i] = legs[i].Clone()
	}
	return out
}

func positionKey(leg models.Leg, liquidity *uint256.Int) market.PositionKey {
	return market.PositionKey{
		Market:    leg.Market,
		TickLower: leg.TickLower,
		TickUpper: leg.TickUpper,
		Liquidity: new(uint256.Int).Set(liquidity),
	}
}

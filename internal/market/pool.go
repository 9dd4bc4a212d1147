package market

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/pricemath"
)

// SimRegistry holds the simulated pools, keyed by market identifier.
type SimRegistry struct {
	mu    sync.RWMutex
	pools map[string]*PoolInfo
}

// NewSimRegistry creates an empty registry.
func NewSimRegistry() *SimRegistry {
	return &SimRegistry{pools: make(map[string]*PoolInfo)}
}

// AddPool registers a pool.
func (r *SimRegistry) AddPool(info PoolInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := info
	p.SqrtPriceX96 = new(uint256.Int).Set(info.SqrtPriceX96)
	r.pools[info.Market] = &p
}

// SetSqrtPrice moves a pool's current price. Simulation control only.
func (r *SimRegistry) SetSqrtPrice(market string, sqrtPriceX96 *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[market]
	if !ok {
		return errs.Wrapf(errs.ErrPoolNotFound, "market %s", market)
	}
	p.SqrtPriceX96 = new(uint256.Int).Set(sqrtPriceX96)
	return nil
}

// Pool implements PoolRegistry.
func (r *SimRegistry) Pool(market string) (PoolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[market]
	if !ok {
		return PoolInfo{}, errs.Wrapf(errs.ErrPoolNotFound, "market %s", market)
	}
	out := *p
	out.SqrtPriceX96 = new(uint256.Int).Set(p.SqrtPriceX96)
	return out, nil
}

// SimPositionManager implements PositionManager against the simulated
// pools. Pool reserves live on the manager's ledger account; withdrawn
// liquidity is tracked per (handler, market, tick range) so it can only
// be returned up to what was taken out.
type SimPositionManager struct {
	mu       sync.Mutex
	ledger   *SimLedger
	registry *SimRegistry
	account  string
	client   string // the engine's ledger account
	used     map[string]*uint256.Int
	reserved map[string]*uint256.Int // liquidity available to withdraw per position
}

// NewSimPositionManager creates a position manager whose withdrawals
// settle to the client account.
func NewSimPositionManager(ledger *SimLedger, registry *SimRegistry, account, client string) *SimPositionManager {
	return &SimPositionManager{
		ledger:   ledger,
		registry: registry,
		account:  account,
		client:   client,
		used:     make(map[string]*uint256.Int),
		reserved: make(map[string]*uint256.Int),
	}
}

// Account implements PositionManager.
func (m *SimPositionManager) Account() string { return m.account }

// Reserve seeds withdrawable liquidity for a position. Setup helper
// standing in for market makers who opted their ranges in.
func (m *SimPositionManager) Reserve(handler string, key PositionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := posID(handler, key)
	if m.reserved[k] == nil {
		m.reserved[k] = new(uint256.Int)
	}
	m.reserved[k].Add(m.reserved[k], key.Liquidity)
}

// ReservedLiquidity returns the liquidity still withdrawable for a
// position.
func (m *SimPositionManager) ReservedLiquidity(handler string, key PositionKey) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reserved[posID(handler, key)]; ok {
		return new(uint256.Int).Set(r)
	}
	return new(uint256.Int)
}

// MarkUsed records liquidity as already withdrawn without moving
// assets. Setup helper for reconstructing the simulation around
// previously persisted options.
func (m *SimPositionManager) MarkUsed(handler string, key PositionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := posID(handler, key)
	if m.used[k] == nil {
		m.used[k] = new(uint256.Int)
	}
	m.used[k].Add(m.used[k], key.Liquidity)
	if m.reserved[k] == nil {
		m.reserved[k] = new(uint256.Int)
	}
}

// UsePosition implements PositionManager. The liquidity's current asset
// amounts are pushed to the client account.
func (m *SimPositionManager) UsePosition(handler string, key PositionKey) (*uint256.Int, *uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := posID(handler, key)
	avail := m.reserved[k]
	if avail == nil || avail.Lt(key.Liquidity) {
		have := "0"
		if avail != nil {
			have = avail.Dec()
		}
		return nil, nil, errs.NewAccountingError(key.Market, key.Liquidity.Dec(), have, errs.ErrInsufficientLiquidity)
	}

	amount0, amount1, err := m.amounts(key)
	if err != nil {
		return nil, nil, err
	}
	if err := m.ledger.Transfer(m.token0(key.Market), m.account, m.client, amount0); err != nil {
		return nil, nil, err
	}
	if err := m.ledger.Transfer(m.token1(key.Market), m.account, m.client, amount1); err != nil {
		return nil, nil, err
	}

	avail.Sub(avail, key.Liquidity)
	if m.used[k] == nil {
		m.used[k] = new(uint256.Int)
	}
	m.used[k].Add(m.used[k], key.Liquidity)
	return amount0, amount1, nil
}

// UnusePosition implements PositionManager. The liquidity's current
// asset amounts are pulled from the client under its approval.
func (m *SimPositionManager) UnusePosition(handler string, key PositionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := posID(handler, key)
	used := m.used[k]
	if used == nil || used.Lt(key.Liquidity) {
		have := "0"
		if used != nil {
			have = used.Dec()
		}
		return errs.NewAccountingError(key.Market, key.Liquidity.Dec(), have, errs.ErrInsufficientLiquidity)
	}

	if err := m.pull(handler, key); err != nil {
		return err
	}
	used.Sub(used, key.Liquidity)
	m.reserved[k].Add(m.reserved[k], key.Liquidity)
	return nil
}

// DonateToPosition implements PositionManager. The donated liquidity
// accrues to the position's reserve without a matching use record, so
// the original holder can withdraw it as yield.
func (m *SimPositionManager) DonateToPosition(handler string, key PositionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.pull(handler, key); err != nil {
		return err
	}
	k := posID(handler, key)
	if m.reserved[k] == nil {
		m.reserved[k] = new(uint256.Int)
	}
	m.reserved[k].Add(m.reserved[k], key.Liquidity)
	return nil
}

// pull moves the asset amounts for key's liquidity from the client to
// the manager, spending the client's allowance.
func (m *SimPositionManager) pull(handler string, key PositionKey) error {
	amount0, amount1, err := m.amounts(key)
	if err != nil {
		return err
	}
	if !amount0.IsZero() {
		if err := m.ledger.TransferFrom(m.token0(key.Market), m.account, m.client, m.account, amount0); err != nil {
			return err
		}
	}
	if !amount1.IsZero() {
		if err := m.ledger.TransferFrom(m.token1(key.Market), m.account, m.client, m.account, amount1); err != nil {
			return err
		}
	}
	return nil
}

func (m *SimPositionManager) amounts(key PositionKey) (*uint256.Int, *uint256.Int, error) {
	pool, err := m.registry.Pool(key.Market)
	if err != nil {
		return nil, nil, err
	}
	sqrtA, err := pricemath.SqrtRatioAtTick(key.TickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtB, err := pricemath.SqrtRatioAtTick(key.TickUpper)
	if err != nil {
		return nil, nil, err
	}
	return pricemath.AmountsForLiquidity(pool.SqrtPriceX96, sqrtA, sqrtB, key.Liquidity)
}

func (m *SimPositionManager) token0(market string) string {
	pool, _ := m.registry.Pool(market)
	return pool.Token0()
}

func (m *SimPositionManager) token1(market string) string {
	pool, _ := m.registry.Pool(market)
	return pool.Token1()
}

func posID(handler string, key PositionKey) string {
	return fmt.Sprintf("%s|%s|%d|%d", handler, key.Market, key.TickLower, key.TickUpper)
}

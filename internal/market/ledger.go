package market

import (
	"sync"

	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
)

// SimLedger is an in-memory fungible asset ledger with ERC-20 style
// balance, transfer, and allowance semantics.
type SimLedger struct {
	mu         sync.RWMutex
	decimals   map[string]uint8
	balances   map[string]map[string]*uint256.Int            // asset -> account -> balance
	allowances map[string]map[string]map[string]*uint256.Int // asset -> owner -> spender -> allowance
}

// NewSimLedger creates an empty ledger.
func NewSimLedger() *SimLedger {
	return &SimLedger{
		decimals:   make(map[string]uint8),
		balances:   make(map[string]map[string]*uint256.Int),
		allowances: make(map[string]map[string]map[string]*uint256.Int),
	}
}

// RegisterAsset declares an asset and its decimal precision.
func (l *SimLedger) RegisterAsset(asset string, decimals uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decimals[asset] = decimals
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[string]*uint256.Int)
	}
}

// Mint credits an account out of thin air. Setup helper only.
func (l *SimLedger) Mint(asset, account string, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, account, amount)
}

// Decimals implements AssetLedger.
func (l *SimLedger) Decimals(asset string) (uint8, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.decimals[asset]
	if !ok {
		return 0, errs.Wrapf(errs.ErrPoolNotFound, "unknown asset %s", asset)
	}
	return d, nil
}

// BalanceOf implements AssetLedger.
func (l *SimLedger) BalanceOf(asset, account string) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if accounts, ok := l.balances[asset]; ok {
		if bal, ok := accounts[account]; ok {
			return new(uint256.Int).Set(bal)
		}
	}
	return new(uint256.Int)
}

// Transfer implements AssetLedger.
func (l *SimLedger) Transfer(asset, from, to string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(asset, from, to, amount)
}

// Approve implements AssetLedger.
func (l *SimLedger) Approve(asset, owner, spender string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[asset] == nil {
		l.allowances[asset] = make(map[string]map[string]*uint256.Int)
	}
	if l.allowances[asset][owner] == nil {
		l.allowances[asset][owner] = make(map[string]*uint256.Int)
	}
	l.allowances[asset][owner][spender] = new(uint256.Int).Set(amount)
	return nil
}

// TransferFrom implements AssetLedger. The spender's allowance from the
// owner is reduced by the transferred amount.
func (l *SimLedger) TransferFrom(asset, spender, from, to string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	allowance := l.allowance(asset, from, spender)
	if allowance.Lt(amount) {
		return errs.NewAccountingError(asset, amount.Dec(), allowance.Dec(), errs.ErrInsufficientAllowance)
	}
	if err := l.move(asset, from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (l *SimLedger) allowance(asset, owner, spender string) *uint256.Int {
	if byOwner, ok := l.allowances[asset]; ok {
		if bySpender, ok := byOwner[owner]; ok {
			if a, ok := bySpender[spender]; ok {
				return a
			}
		}
	}
	return new(uint256.Int)
}

func (l *SimLedger) move(asset, from, to string, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	accounts := l.balances[asset]
	if accounts == nil {
		return errs.Wrapf(errs.ErrPoolNotFound, "unknown asset %s", asset)
	}
	bal, ok := accounts[from]
	if !ok || bal.Lt(amount) {
		have := "0"
		if ok {
			have = bal.Dec()
		}
		return errs.NewAccountingError(asset, amount.Dec(), have, errs.ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	l.credit(asset, to, amount)
	return nil
}

func (l *SimLedger) credit(asset, account string, amount *uint256.Int) {
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[string]*uint256.Int)
	}
	if l.balances[asset][account] == nil {
		l.balances[asset][account] = new(uint256.Int)
	}
	l.balances[asset][account].Add(l.balances[asset][account], amount)
}

package market

import (
	"github.com/holiman/uint256"

	errs "clamm-options/internal/errors"
	"clamm-options/internal/pricemath"
)

// SimSwapper fills swaps at the pool's current price out of its own
// ledger reserves. It implements SwapExecutor for tests and the CLI
// simulation; a production executor would route through an aggregator.
type SimSwapper struct {
	ledger   *SimLedger
	registry *SimRegistry
	market   string
	account  string
	client   string // account the fill is pushed to
}

// NewSimSwapper creates a swapper that fills against one market's price.
func NewSimSwapper(ledger *SimLedger, registry *SimRegistry, market, account, client string) *SimSwapper {
	return &SimSwapper{
		ledger:   ledger,
		registry: registry,
		market:   market,
		account:  account,
		client:   client,
	}
}

// Account implements SwapExecutor.
func (s *SimSwapper) Account() string { return s.account }

// OnSwapReceived implements SwapExecutor. It pulls amountIn of assetIn
// from the client under a prior approval and pushes the equivalent
// assetOut at the pool price back. A fill the swapper cannot pay pulls
// nothing. The payload is ignored.
func (s *SimSwapper) OnSwapReceived(assetIn, assetOut string, amountIn *uint256.Int, payload []byte) error {
	amountOut, err := s.Quote(assetIn, amountIn)
	if err != nil {
		return err
	}
	if inventory := s.ledger.BalanceOf(assetOut, s.account); inventory.Lt(amountOut) {
		return errs.NewAccountingError(assetOut, amountOut.Dec(), inventory.Dec(), errs.ErrInsufficientBalance)
	}
	if err := s.ledger.TransferFrom(assetIn, s.account, s.client, s.account, amountIn); err != nil {
		return err
	}
	return s.ledger.Transfer(assetOut, s.account, s.client, amountOut)
}

// Quote returns the assetOut amount amountIn of assetIn converts to at
// the pool's current price.
func (s *SimSwapper) Quote(assetIn string, amountIn *uint256.Int) (*uint256.Int, error) {
	pool, err := s.registry.Pool(s.market)
	if err != nil {
		return nil, err
	}
	// Apply the sqrt price twice to stay within 256 bits per step.
	switch assetIn {
	case pool.Token0():
		half, err := pricemath.MulDiv(amountIn, pool.SqrtPriceX96, pricemath.Q96)
		if err != nil {
			return nil, err
		}
		return pricemath.MulDiv(half, pool.SqrtPriceX96, pricemath.Q96)
	case pool.Token1():
		half, err := pricemath.MulDiv(amountIn, pricemath.Q96, pool.SqrtPriceX96)
		if err != nil {
			return nil, err
		}
		return pricemath.MulDiv(half, pricemath.Q96, pool.SqrtPriceX96)
	default:
		return nil, errs.Wrapf(errs.ErrPoolNotFound, "asset %s not in market %s", assetIn, s.market)
	}
}

// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors. Every engine failure is atomic: a call that
// returns one of these has left no partial state behind.
var (
	// Configuration errors.
	ErrVolatilityUnset   = errors.New("no volatility registered for time-to-live")
	ErrMarketNotApproved = errors.New("market is not approved as a collateral source")
	ErrPoolNotFound      = errors.New("pool not found")
	ErrOptionNotFound    = errors.New("option not found")

	// Authorization errors.
	ErrNotOwner           = errors.New("caller is not the option owner")
	ErrNotOwnerOrDelegate = errors.New("caller is neither owner nor authorized delegate")
	ErrNotApprovedSettler = errors.New("caller is not an approved settler")
	ErrNotOperator        = errors.New("caller is not the operator")

	// Shape errors.
	ErrLegCountMismatch  = errors.New("per-leg array length does not match option leg count")
	ErrLegStrikeMismatch = errors.New("leg tick bound does not match option strike bound")
	ErrMarketMismatch    = errors.New("all legs of an option must reference one market")
	ErrArrayLenMismatch  = errors.New("array lengths do not match")
	ErrNoLegs            = errors.New("at least one leg is required")

	// Temporal errors.
	ErrOptionExpired    = errors.New("option has expired")
	ErrOptionNotExpired = errors.New("option has not expired yet")

	// Economic errors.
	ErrMaxCostExceeded  = errors.New("premium plus fee exceeds declared maximum")
	ErrStrikeNotCrossed = errors.New("market price has not crossed the leg's range")

	// Accounting errors.
	ErrLiquidityUnderflow     = errors.New("debit exceeds committed leg liquidity")
	ErrInvalidCollateral      = errors.New("withdrawal must yield exactly the collateral asset")
	ErrInsufficientSwapReturn = errors.New("insufficient return after swap")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientAllowance  = errors.New("insufficient allowance")
	ErrInsufficientLiquidity  = errors.New("insufficient reserved liquidity")

	// Control errors.
	ErrReentrantCall = errors.New("reentrant call rejected")
)

// OptionError wraps a failure of one lifecycle operation with the option
// and operation it concerned.
type OptionError struct {
	OptionID uint64
	Op       string // mint, exercise, settle, split
	Err      error
}

func (e *OptionError) Error() string {
	if e.OptionID == 0 {
		return fmt.Sprintf("option %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("option %s [%d]: %v", e.Op, e.OptionID, e.Err)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

// NewOptionError creates a new OptionError.
func NewOptionError(optionID uint64, op string, err error) *OptionError {
	return &OptionError{OptionID: optionID, Op: op, Err: err}
}

// AccountingError reports a balance or liquidity shortfall discovered
// during a multi-step operation.
type AccountingError struct {
	Asset    string
	Required string
	Actual   string
	Err      error
}

func (e *AccountingError) Error() string {
	return fmt.Sprintf("accounting error [%s]: required %s, have %s: %v", e.Asset, e.Required, e.Actual, e.Err)
}

func (e *AccountingError) Unwrap() error {
	return e.Err
}

// NewAccountingError creates a new AccountingError.
func NewAccountingError(asset, required, actual string, err error) *AccountingError {
	return &AccountingError{Asset: asset, Required: required, Actual: actual, Err: err}
}

// AdminError reports a rejected admin mutation.
type AdminError struct {
	Field  string
	Reason string
	Err    error
}

func (e *AdminError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("admin error [%s]: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("admin error [%s]: %s", e.Field, e.Reason)
}

func (e *AdminError) Unwrap() error {
	return e.Err
}

// NewAdminError creates a new AdminError.
func NewAdminError(field, reason string, err error) *AdminError {
	return &AdminError{Field: field, Reason: reason, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

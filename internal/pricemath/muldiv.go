// Package pricemath implements the fixed-point math of a concentrated
// liquidity market: tick to sqrt-price conversion, sqrt-price to decimal
// price conversion, and the amount/liquidity translations over a tick
// range. All division truncates; all functions are deterministic.
package pricemath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when a result does not fit in 256 bits.
	ErrOverflow = errors.New("pricemath: result overflows uint256")
	// ErrDivByZero is returned for a zero denominator.
	ErrDivByZero = errors.New("pricemath: division by zero")
	// ErrInvalidRange is returned for a degenerate tick range.
	ErrInvalidRange = errors.New("pricemath: invalid tick range")
)

// Q96 is the fixed-point scale of a sqrt price (2^96).
var Q96 = uint256.MustFromHex("0x1000000000000000000000000")

func toBig(z *uint256.Int) *big.Int {
	words := [4]big.Word{big.Word(z[0]), big.Word(z[1]), big.Word(z[2]), big.Word(z[3])}
	return new(big.Int).SetBits(words[:])
}

// MulDiv computes a * b / den with a 512-bit intermediate product and
// truncating division.
func MulDiv(a, b, den *uint256.Int) (*uint256.Int, error) {
	if den.IsZero() {
		return nil, ErrDivByZero
	}
	prod := new(big.Int).Mul(toBig(a), toBig(b))
	prod.Div(prod, toBig(den))
	out, overflow := uint256.FromBig(prod)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// Pow10 returns 10^n as a uint256.
func Pow10(n uint8) *uint256.Int {
	out := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		out.Mul(out, ten)
	}
	return out
}

package pricemath

import "github.com/holiman/uint256"

var (
	uint128Max = uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")
	oneShl128  = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	oneShl192  = new(uint256.Int).Lsh(uint256.NewInt(1), 192)
)

// PriceFromSqrtX96 converts a Q96 sqrt price into a decimal price of the
// designated call asset in terms of the other asset, scaled by
// 10^decimals. callIsToken0 states which side of the market the call
// asset sits on; when it is token1 the ratio is inverted.
//
// The computation branches on magnitude so the squaring never overflows:
// narrow sqrt prices are squared directly against a 2^192 denominator,
// wide ones are pre-shifted by 32 bits and squared against 2^128.
func PriceFromSqrtX96(sqrtPriceX96 *uint256.Int, decimals uint8, callIsToken0 bool) (*uint256.Int, error) {
	if sqrtPriceX96.IsZero() {
		return nil, ErrDivByZero
	}
	scale := Pow10(decimals)

	if !sqrtPriceX96.Gt(uint128Max) {
		priceX192 := new(uint256.Int).Mul(sqrtPriceX96, sqrtPriceX96)
		if callIsToken0 {
			return MulDiv(priceX192, scale, oneShl192)
		}
		return MulDiv(scale, oneShl192, priceX192)
	}

	shifted := new(uint256.Int).Rsh(sqrtPriceX96, 32)
	priceX128 := new(uint256.Int).Mul(shifted, shifted)
	if callIsToken0 {
		return MulDiv(priceX128, scale, oneShl128)
	}
	return MulDiv(scale, oneShl128, priceX128)
}

// PriceAtTick returns the decimal price at a tick, composing
// SqrtRatioAtTick with PriceFromSqrtX96. Used to derive an option's
// strike from its strike-bound tick.
func PriceAtTick(tick int, decimals uint8, callIsToken0 bool) (*uint256.Int, error) {
	sqrt, err := SqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	return PriceFromSqrtX96(sqrt, decimals, callIsToken0)
}

package pricemath

import "github.com/holiman/uint256"

// orderRatios returns the two ratios in ascending order.
func orderRatios(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// Amount0ForLiquidity returns the amount of token0 carried by liquidity
// over [sqrtA, sqrtB]: liquidity << 96 * (sqrtB - sqrtA) / sqrtB / sqrtA.
func Amount0ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = orderRatios(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, ErrInvalidRange
	}
	numerator := new(uint256.Int).Lsh(liquidity, 96)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	out, err := MulDiv(numerator, diff, sqrtB)
	if err != nil {
		return nil, err
	}
	return out.Div(out, sqrtA), nil
}

// Amount1ForLiquidity returns the amount of token1 carried by liquidity
// over [sqrtA, sqrtB]: liquidity * (sqrtB - sqrtA) / Q96.
func Amount1ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = orderRatios(sqrtA, sqrtB)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	return MulDiv(liquidity, diff, Q96)
}

// AmountsForLiquidity returns the token0 and token1 amounts a position of
// the given liquidity over [sqrtA, sqrtB] resolves to at the current
// sqrt price. Out-of-range positions resolve single-sided.
func AmountsForLiquidity(sqrtCurrent, sqrtA, sqrtB, liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	sqrtA, sqrtB = orderRatios(sqrtA, sqrtB)
	amount0 = new(uint256.Int)
	amount1 = new(uint256.Int)

	switch {
	case !sqrtCurrent.Gt(sqrtA):
		// Price at or below the range: all token0.
		amount0, err = Amount0ForLiquidity(sqrtA, sqrtB, liquidity)
	case sqrtCurrent.Lt(sqrtB):
		// In range: mixed exposure.
		amount0, err = Amount0ForLiquidity(sqrtCurrent, sqrtB, liquidity)
		if err == nil {
			amount1, err = Amount1ForLiquidity(sqrtA, sqrtCurrent, liquidity)
		}
	default:
		// Price at or above the range: all token1.
		amount1, err = Amount1ForLiquidity(sqrtA, sqrtB, liquidity)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// LiquidityForAmount0 returns the liquidity a token0 amount buys over
// [sqrtA, sqrtB]: amount0 * (sqrtA * sqrtB / Q96) / (sqrtB - sqrtA).
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = orderRatios(sqrtA, sqrtB)
	intermediate, err := MulDiv(sqrtA, sqrtB, Q96)
	if err != nil {
		return nil, err
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	return MulDiv(amount0, intermediate, diff)
}

// LiquidityForAmount1 returns the liquidity a token1 amount buys over
// [sqrtA, sqrtB]: amount1 * Q96 / (sqrtB - sqrtA).
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = orderRatios(sqrtA, sqrtB)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	return MulDiv(amount1, Q96, diff)
}

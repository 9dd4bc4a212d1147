package pricemath

import (
	"errors"

	"github.com/holiman/uint256"
)

// Tick bounds of the market. A sqrt ratio exists for every tick in
// [MinTick, MaxTick].
const (
	MinTick = -887272
	MaxTick = 887272
)

// ErrTickOutOfRange is returned for ticks outside [MinTick, MaxTick].
var ErrTickOutOfRange = errors.New("pricemath: tick out of range")

// sqrtRatioMuls are the per-bit multipliers of the sqrt ratio
// computation, indexed by the bit of |tick| they correspond to.
var sqrtRatioMuls = [19]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	sqrtRatioSeedOdd  = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	sqrtRatioSeedEven = uint256.MustFromHex("0x100000000000000000000000000000000")
	uint160Max        = uint256.MustFromHex("0xffffffffffffffffffffffffffffffffffffffff")
	oneShl32          = new(uint256.Int).Lsh(uint256.NewInt(1), 32)
	uint256Max        = new(uint256.Int).SubUint64(new(uint256.Int), 1)
)

// SqrtRatioAtTick returns the Q96 sqrt price ratio at the given tick,
// i.e. sqrt(1.0001^tick) << 96, truncated into 160 bits.
func SqrtRatioAtTick(tick int) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	var absTick uint64
	if tick < 0 {
		absTick = uint64(-tick)
	} else {
		absTick = uint64(tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(sqrtRatioSeedOdd)
	} else {
		ratio.Set(sqrtRatioSeedEven)
	}
	for i := 0; i < len(sqrtRatioMuls); i++ {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, sqrtRatioMuls[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(uint256Max, ratio)
	}

	// Round up while narrowing from Q128 to Q96.
	rem := new(uint256.Int).Mod(ratio, oneShl32)
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	ratio.And(ratio, uint160Max)
	return ratio, nil
}

package pricemath

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqrtRatioAtTickKnownValues(t *testing.T) {
	cases := []struct {
		tick int
		want string
	}{
		{0, "79228162514264337593543950336"}, // exactly 2^96
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}
	for _, tc := range cases {
		got, err := SqrtRatioAtTick(tc.tick)
		require.NoError(t, err, "tick %d", tc.tick)
		assert.Equal(t, tc.want, got.Dec(), "tick %d", tc.tick)
	}
}

func TestSqrtRatioAtTickOutOfRange(t *testing.T) {
	_, err := SqrtRatioAtTick(MinTick - 1)
	assert.ErrorIs(t, err, ErrTickOutOfRange)
	_, err = SqrtRatioAtTick(MaxTick + 1)
	assert.ErrorIs(t, err, ErrTickOutOfRange)
}

// The sqrt ratio must be strictly increasing in the tick: every price
// level maps to exactly one tick.
func TestProperty_SqrtRatioMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	tickGen := gen.IntRange(MinTick, MaxTick-1)

	properties.Property("ratio(tick) < ratio(tick+1)", prop.ForAll(
		func(tick int) bool {
			lo, err := SqrtRatioAtTick(tick)
			if err != nil {
				return false
			}
			hi, err := SqrtRatioAtTick(tick + 1)
			if err != nil {
				return false
			}
			return lo.Lt(hi)
		},
		tickGen,
	))

	properties.TestingRun(t)
}

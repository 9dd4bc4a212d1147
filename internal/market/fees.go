package market

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FlatFeeStrategy charges a flat basis-point cut of the premium,
// independent of the caller.
type FlatFeeStrategy struct {
	Bps uint64
}

// FeeFor returns premium * Bps / 10000, rounded down.
func (f FlatFeeStrategy) FeeFor(_ string, premium *uint256.Int) *uint256.Int {
	fee := new(uint256.Int).Mul(premium, uint256.NewInt(f.Bps))
	return fee.Div(fee, uint256.NewInt(10_000))
}

// StaticMetadata renders token documents from a fixed base URI.
type StaticMetadata struct {
	BaseURI string
}

// TokenURI returns BaseURI with the option id appended.
func (m StaticMetadata) TokenURI(optionID uint64) string {
	return fmt.Sprintf("%s%d", m.BaseURI, optionID)
}

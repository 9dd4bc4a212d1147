package market

import (
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"gonum.org/v1/gonum/stat/distuv"
)

// Black76 pricer errors.
var (
	ErrUnknownVolID = errors.New("black76: unknown volatility identifier")
	ErrExpired      = errors.New("black76: non-positive time to expiry")
	ErrBadInputs    = errors.New("black76: strike and spot must be positive")
)

const secondsPerYear = 365 * 24 * 3600

// Black76Pricer implements OptionPricer with the Black-76 forward model
// at zero rate. Volatility identifiers map to annualized sigmas fixed at
// construction. Strike and spot share one decimal scale and the result
// is returned in the same scale, so the float round-trip only touches
// the model itself.
type Black76Pricer struct {
	vols map[uint64]float64
	now  func() time.Time
}

// NewBlack76Pricer creates a pricer with the given volatility table.
func NewBlack76Pricer(vols map[uint64]float64, now func() time.Time) *Black76Pricer {
	if now == nil {
		now = time.Now
	}
	table := make(map[uint64]float64, len(vols))
	for id, sigma := range vols {
		table[id] = sigma
	}
	return &Black76Pricer{vols: table, now: now}
}

// GetOptionPrice implements OptionPricer.
func (p *Black76Pricer) GetOptionPrice(isPut bool, expiry time.Time, strike, spot *uint256.Int, volID uint64) (*uint256.Int, error) {
	sigma, ok := p.vols[volID]
	if !ok {
		return nil, ErrUnknownVolID
	}
	ttl := expiry.Sub(p.now())
	if ttl <= 0 {
		return nil, ErrExpired
	}
	if strike.IsZero() || spot.IsZero() {
		return nil, ErrBadInputs
	}

	k, _ := new(big.Float).SetInt(strike.ToBig()).Float64()
	f, _ := new(big.Float).SetInt(spot.ToBig()).Float64()
	t := ttl.Seconds() / secondsPerYear

	price := black76(isPut, f, k, sigma, t)
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return new(uint256.Int), nil
	}
	out, _ := big.NewFloat(price).Int(nil)
	res, overflow := uint256.FromBig(out)
	if overflow {
		return nil, ErrBadInputs
	}
	return res, nil
}

// black76 prices a forward option at zero rate: discounting is the
// caller's concern.
func black76(isPut bool, f, k, sigma, t float64) float64 {
	std := distuv.Normal{Mu: 0, Sigma: 1}
	totalVol := sigma * math.Sqrt(t)
	d1 := (math.Log(f/k) + 0.5*totalVol*totalVol) / totalVol
	d2 := d1 - totalVol
	if isPut {
		return k*std.CDF(-d2) - f*std.CDF(-d1)
	}
	return f*std.CDF(d1) - k*std.CDF(d2)
}

package bidder

import (
	"math"
	"math/rand"

	"github.com/prebid/openrtb/v20/openrtb2"
)

// Pricer decides the price of a synthesized bid. The impression is available
// so a real strategy can price off floor, size or targeting data.
type Pricer interface {
	Price(imp *openrtb2.Imp) float64
	Name() string
}

// RandomPricer is the placeholder pricing strategy: a uniformly random price
// in [0, max) rounded to 2 decimals, ignoring the impression entirely.
type RandomPricer struct {
	max float64
}

func NewRandomPricer(max float64) RandomPricer {
	if max <= 0 {
		max = 10.0
	}
	return RandomPricer{max: max}
}

func (p RandomPricer) Price(_ *openrtb2.Imp) float64 {
	// Truncate rather than round so the price stays strictly below max.
	return math.Floor(rand.Float64()*p.max*100) / 100
}

func (p RandomPricer) Name() string {
	return "random"
}

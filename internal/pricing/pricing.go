package pricing

import (
	"errors"
	"math"
)

var (
	ErrInvalidDiscountRate      = errors.New("discount rate must be between 0 and 1")
	ErrInvalidDiscountThreshold = errors.New("discount threshold must not be negative")
	ErrInvalidUnitPrice         = errors.New("unit price must not be negative")
)

// Policy is the album-level pricing configuration: a flat price per photo
// with a volume discount on every unit beyond the threshold.
type Policy struct {
	UnitPrice         float64
	DiscountThreshold int
	DiscountRate      float64
}

func (p Policy) Validate() error {
	if p.DiscountRate < 0 || p.DiscountRate > 1 {
		return ErrInvalidDiscountRate
	}
	if p.DiscountThreshold < 0 {
		return ErrInvalidDiscountThreshold
	}
	if p.UnitPrice < 0 {
		return ErrInvalidUnitPrice
	}
	return nil
}

// Total prices a selection. prices holds one unit price per selected photo,
// in selection order; the first DiscountThreshold units are charged in full,
// every unit beyond gets DiscountRate off. Rounding to the smallest currency
// unit happens exactly once, on the final sum, so per-item rounding drift
// cannot accumulate.
func Total(prices []float64, p Policy) float64 {
	var sum float64
	for i, unit := range prices {
		if i < p.DiscountThreshold {
			sum += unit
		} else {
			sum += unit * (1 - p.DiscountRate)
		}
	}
	return roundHalfUp(sum)
}

// UniformPrices expands a flat unit price to a per-photo price slice.
func UniformPrices(count int, unit float64) []float64 {
	prices := make([]float64, count)
	for i := range prices {
		prices[i] = unit
	}
	return prices
}

// roundHalfUp rounds to two decimals, ties away from zero.
func roundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

package usecase

import "math"

// Progress is how far the offer has conceded from list price toward the cost floor,
// clamped to [0, 1].
func Progress(initialOffer, currentOffer, costFloor float64) float64 {
	span := initialOffer - costFloor
	if span <= 0 {
		return 0
	}
	p := (initialOffer - currentOffer) / span
	if math.IsNaN(p) {
		return 0
	}
	return clamp(p, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

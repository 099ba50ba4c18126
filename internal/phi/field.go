package phi

import "math"

// ConjugateField represents anything with a charge/discharge pair. Populations
// charge through births and discharge through deaths.
type ConjugateField interface {
	// ChargingPressure returns the accumulation pressure (birth rate).
	ChargingPressure() float64
	// DischargingPressure returns the expenditure pressure (death rate).
	DischargingPressure() float64
}

// NullPoint returns the absolute pressure differential.
func NullPoint(f ConjugateField) float64 {
	return math.Abs(f.ChargingPressure() - f.DischargingPressure())
}

// HealthRatio returns 0.0–1.0 indicating how balanced the conjugate pair is.
// Any ratio inside the golden band Φ⁻¹..Φ counts as fully balanced. A field
// with no pressure at all (an empty population) has zero health.
func HealthRatio(f ConjugateField) float64 {
	cp := f.ChargingPressure()
	dp := f.DischargingPressure()
	if dp <= 0 {
		return 0
	}
	ratio := cp / dp

	if ratio >= Matter && ratio <= Being {
		return 1.0
	}

	health := 1.0 - math.Abs(ratio-1.0)/Totality
	if health < 0 {
		return 0
	}
	return health
}

// Package phi provides the golden-ratio constants, the conjugate field balance
// model, and the bridge from external readings into oscillator phase space.
package phi

import "math"

// Phi is the golden ratio.
const Phi = 1.6180339887498948

// TwoPi is one full oscillator turn.
const TwoPi = 2 * math.Pi

// Golden band constants derived from powers of Phi.
var (
	// Matter (Φ⁻¹): lower edge of the balanced band.
	Matter = math.Pow(Phi, -1) // 0.61803...

	// Being (Φ¹): upper edge of the balanced band.
	Being = Phi // 1.61803...

	// Totality (Φ³): deviation at which balance reaches zero.
	Totality = math.Pow(Phi, 3) // 4.23606...
)

// Incommensurate holds the three oscillator frequencies used by the bridge.
// π, e and Φ are pairwise irrational ratios, so a shared input never lines
// the three phases up by coincidence.
var Incommensurate = [3]float64{math.Pi, math.E, Phi}

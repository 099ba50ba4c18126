package energy

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Noise is a synthetic source that wanders around a baseline using layered
// simplex noise. The same seed always produces the same signal.
type Noise struct {
	noise     opensimplex.Noise
	Base      float64 // Centre of the signal
	Amplitude float64 // Maximum swing either side of Base
	Frequency float64 // Base noise frequency per cycle
	Octaves   int
}

// NewNoise creates a seeded noise source.
func NewNoise(seed int64, base, amplitude, frequency float64, octaves int) *Noise {
	if octaves < 1 {
		octaves = 1
	}
	return &Noise{
		noise:     opensimplex.NewNormalized(seed),
		Base:      base,
		Amplitude: amplitude,
		Frequency: frequency,
		Octaves:   octaves,
	}
}

// Sample implements Source.
func (n *Noise) Sample(cycle int) float64 {
	v := octaveNoise(n.noise, float64(cycle), 0, n.Octaves, n.Frequency, 0.5)
	return Clamp(n.Base + (v*2-1)*n.Amplitude)
}

// octaveNoise layers several frequencies; the result stays in [0, 1] for a
// normalized noise generator.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

package phi

import (
	"math"
	"sort"

	"github.com/talgya/nrm/internal/config"
)

// Vector is a point in the three-oscillator phase space. Each component lies
// in [0, 2π).
type Vector [3]float64

// RealityToPhase maps a set of named readings onto a phase vector. Readings
// are folded into one scalar in sorted key order, each weighted by its rank,
// and the scalar drives three oscillators at incommensurate frequencies.
// Identical readings always give the identical vector.
func RealityToPhase(metrics map[string]float64) (Vector, error) {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := 0.0
	for i, k := range keys {
		v := metrics[k]
		if err := config.RequireFinite("metrics."+k, v); err != nil {
			return Vector{}, err
		}
		s += float64(i+1) * v
	}
	if err := config.RequireFinite("metrics", s); err != nil {
		return Vector{}, err
	}

	var p Vector
	for j, freq := range Incommensurate {
		p[j] = wrap(s * freq)
	}
	return p, nil
}

// Alignment returns the dot product of the two vectors' unit-circle
// embeddings, normalised to [-1, 1]. Identical phases give 1.
func (v Vector) Alignment(o Vector) float64 {
	sum := 0.0
	for k := range v {
		sum += math.Cos(v[k] - o[k])
	}
	return sum / float64(len(v))
}

// OrderParameter returns the mean Kuramoto coherence of a set of vectors
// across the three oscillators, in [0, 1]. An empty set has zero coherence.
func OrderParameter(vectors []Vector) float64 {
	if len(vectors) == 0 {
		return 0
	}
	n := float64(len(vectors))
	total := 0.0
	for k := 0; k < 3; k++ {
		var re, im float64
		for _, v := range vectors {
			re += math.Cos(v[k])
			im += math.Sin(v[k])
		}
		total += math.Hypot(re/n, im/n)
	}
	return total / 3
}

func wrap(x float64) float64 {
	r := math.Mod(x, TwoPi)
	if r < 0 {
		r += TwoPi
	}
	return r
}

// Package entropy provides the single seeded random stream each run owns, and
// a crypto/rand fallback for drawing fresh seeds.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"math"
	mrand "math/rand"
)

// knuthLimit is the mean above which Poisson draws switch from Knuth's
// multiplication method to transformed rejection.
const knuthLimit = 30.0

// Source is a run-private pseudo-random stream. Every stochastic draw of a
// run goes through one Source; it is never shared between runs.
type Source struct {
	seed int64
	rng  *mrand.Rand
}

// New creates a stream for the given seed. Seed 0 draws a fresh seed from
// crypto/rand so the run is still reproducible from the recorded Seed().
func New(seed int64) *Source {
	if seed == 0 {
		seed = CryptoSeed()
		slog.Debug("drew fresh seed", "seed", seed)
	}
	return &Source{
		seed: seed,
		rng:  mrand.New(mrand.NewSource(seed)),
	}
}

// Seed returns the seed the stream was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Float returns a uniform float64 in [0, 1).
func (s *Source) Float() float64 {
	return s.rng.Float64()
}

// Intn returns a uniform int in [0, n). Panics if n <= 0.
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}

// Bernoulli returns true with probability p.
func (s *Source) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.rng.Float64() < p
}

// Poisson draws a Poisson-distributed count with the given mean. Means that
// are zero, negative or NaN yield 0.
func (s *Source) Poisson(mean float64) int {
	if !(mean > 0) {
		return 0
	}
	if mean < knuthLimit {
		return s.poissonKnuth(mean)
	}
	return s.poissonPTRS(mean)
}

func (s *Source) poissonKnuth(mean float64) int {
	limit := math.Exp(-mean)
	k := 0
	p := s.rng.Float64()
	for p > limit {
		k++
		p *= s.rng.Float64()
	}
	return k
}

// poissonPTRS implements Hörmann's transformed rejection with squeeze.
func (s *Source) poissonPTRS(mean float64) int {
	slam := math.Sqrt(mean)
	loglam := math.Log(mean)
	b := 0.931 + 2.53*slam
	a := -0.059 + 0.02483*b
	invalpha := 1.1239 + 1.1328/(b-3.4)
	vr := 0.9277 - 3.6224/(b-2)

	for {
		u := s.rng.Float64() - 0.5
		v := s.rng.Float64()
		us := 0.5 - math.Abs(u)
		k := math.Floor((2*a/us+b)*u + mean + 0.43)

		if us >= 0.07 && v <= vr {
			return int(k)
		}
		if k < 0 || (us < 0.013 && v > us) {
			continue
		}
		lg, _ := math.Lgamma(k + 1)
		if math.Log(v)+math.Log(invalpha)-math.Log(a/(us*us)+b) <= -mean+k*loglam-lg {
			return int(k)
		}
	}
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed non-zero seed.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		return 1
	}
	return seed
}

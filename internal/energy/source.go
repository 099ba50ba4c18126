// Package energy provides the per-cycle capacity signal agents recharge from.
// The engine samples its Source exactly once per cycle and shares the value
// with every agent.
package energy

import (
	"fmt"

	"github.com/talgya/nrm/internal/config"
)

// MaxCapacity is the upper bound of any capacity reading.
const MaxCapacity = 200.0

// Source supplies the available capacity for a cycle, in [0, MaxCapacity].
type Source interface {
	Sample(cycle int) float64
}

// MetricsReporter is implemented by sources that expose the raw readings
// behind their last sample. The engine feeds them to the phase bridge.
type MetricsReporter interface {
	Metrics() map[string]float64
}

// Clamp bounds a reading to [0, MaxCapacity]. NaN reads as empty.
func Clamp(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > MaxCapacity {
		return MaxCapacity
	}
	return v
}

// Constant is a synthetic source returning the same capacity every cycle.
type Constant float64

// Sample implements Source.
func (c Constant) Sample(int) float64 {
	return Clamp(float64(c))
}

// Series replays externally supplied readings; cycle 1 reads the first
// value and the last value repeats once the series runs out.
type Series []float64

// Sample implements Source.
func (s Series) Sample(cycle int) float64 {
	if len(s) == 0 {
		return 0
	}
	i := cycle - 1
	if i < 0 {
		i = 0
	}
	if i >= len(s) {
		i = len(s) - 1
	}
	return Clamp(s[i])
}

// Func adapts a caller-driven callback into a Source.
type Func func(cycle int) float64

// Sample implements Source.
func (f Func) Sample(cycle int) float64 {
	return Clamp(f(cycle))
}

// Memo guards a Source so repeated reads within one cycle return the first
// sample instead of querying the source again.
type Memo struct {
	src   Source
	cycle int
	value float64
	valid bool
}

// NewMemo wraps src.
func NewMemo(src Source) *Memo {
	return &Memo{src: src}
}

// Sample implements Source.
func (m *Memo) Sample(cycle int) float64 {
	if m.valid && m.cycle == cycle {
		return m.value
	}
	m.value = Clamp(m.src.Sample(cycle))
	m.cycle = cycle
	m.valid = true
	return m.value
}

// Metrics forwards to the wrapped source when it reports readings.
func (m *Memo) Metrics() map[string]float64 {
	if r, ok := m.src.(MetricsReporter); ok {
		return r.Metrics()
	}
	return nil
}

// FromConfig builds the source an experiment names. The seed keys the
// synthetic noise so replicate runs see independent signals.
func FromConfig(cfg config.EnergyConfig, seed int64) (Source, error) {
	switch cfg.Kind {
	case "", config.EnergyConstant:
		return Constant(cfg.Capacity), nil
	case config.EnergySeries:
		return Series(append([]float64(nil), cfg.Series...)), nil
	case config.EnergyNoise:
		return NewNoise(seed, cfg.Capacity, cfg.Amplitude, cfg.Frequency, cfg.Octaves), nil
	case config.EnergySystem:
		return NewSystem(), nil
	default:
		return nil, fmt.Errorf("energy source %q: %w", cfg.Kind,
			&config.ConfigurationError{Param: "energy.kind", Value: cfg.Kind, Reason: "unknown energy source"})
	}
}

// Package regime labels a population trajectory. Classifiers are pure: the
// same trajectory and thresholds always give the same label, so labels can
// be re-derived from archived results.
package regime

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/nrm/internal/config"
)

// Labels.
const (
	BasinA       = "Basin A"
	BasinB       = "Basin B"
	Collapsed    = "collapsed"
	Sustained    = "sustained"
	Oscillatory  = "oscillatory"
	Intermediate = "intermediate"
)

// Strategy names accepted by Lookup.
const (
	StrategyBasin  = "basin"
	StrategyRegime = "regime"
)

// Classification is the summary of a trajectory window plus its label.
type Classification struct {
	Strategy string  `json:"strategy"`
	Label    string  `json:"label"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"` // Population standard deviation
	CV       float64 `json:"cv"`  // Std / Mean; 0 when Mean is 0
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Window   int     `json:"window"` // Samples the statistics cover
}

// Classifier maps a total-population trajectory to a label.
type Classifier interface {
	Name() string
	Classify(trajectory []float64) Classification
}

// Basin compares the tail mean to a single threshold.
type Basin struct {
	Threshold    float64 // Tail mean above this is Basin A
	TailFraction float64 // Share of the trajectory, from the end, that is averaged
}

// Name implements Classifier.
func (Basin) Name() string { return StrategyBasin }

// Classify implements Classifier.
func (b Basin) Classify(trajectory []float64) Classification {
	c := summarize(tail(trajectory, b.TailFraction))
	c.Strategy = StrategyBasin
	if c.Mean > b.Threshold {
		c.Label = BasinA
	} else {
		c.Label = BasinB
	}
	return c
}

// Regime separates collapse, steady state and oscillation using the mean and
// coefficient of variation after an initial transient.
type Regime struct {
	TransientFraction float64 // Leading share of the trajectory discarded
	CollapseThreshold float64 // Mean below this is collapsed
	SustainThreshold  float64 // Mean above this is sustained or oscillatory
	OscillationCV     float64 // CV above this is oscillatory
}

// Name implements Classifier.
func (Regime) Name() string { return StrategyRegime }

// Classify implements Classifier.
func (r Regime) Classify(trajectory []float64) Classification {
	c := summarize(tail(trajectory, 1-r.TransientFraction))
	c.Strategy = StrategyRegime
	switch {
	case c.Mean < r.CollapseThreshold:
		c.Label = Collapsed
	case c.Mean > r.SustainThreshold && c.CV <= r.OscillationCV:
		c.Label = Sustained
	case c.Mean > r.SustainThreshold:
		c.Label = Oscillatory
	default:
		c.Label = Intermediate
	}
	return c
}

// FromConfig returns both strategies configured from an experiment file.
func FromConfig(cfg config.ClassifierConfig) []Classifier {
	return []Classifier{
		Basin{Threshold: cfg.BasinThreshold, TailFraction: cfg.TailFraction},
		Regime{
			TransientFraction: cfg.TransientFraction,
			CollapseThreshold: cfg.CollapseThreshold,
			SustainThreshold:  cfg.SustainThreshold,
			OscillationCV:     cfg.OscillationCV,
		},
	}
}

// Lookup selects one configured strategy by name.
func Lookup(name string, cfg config.ClassifierConfig) (Classifier, error) {
	for _, c := range FromConfig(cfg) {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown classifier %q (want %q or %q)", name, StrategyBasin, StrategyRegime)
}

// ClassifyAll applies every classifier and returns the labels by strategy.
func ClassifyAll(classifiers []Classifier, trajectory []float64) map[string]Classification {
	out := make(map[string]Classification, len(classifiers))
	for _, c := range classifiers {
		out[c.Name()] = c.Classify(trajectory)
	}
	return out
}

// tail returns the trailing fraction of xs, at least one sample when xs is
// non-empty.
func tail(xs []float64, fraction float64) []float64 {
	switch {
	case len(xs) == 0:
		return nil
	case fraction >= 1:
		return xs
	case !(fraction > 0):
		return xs[len(xs)-1:]
	}
	n := int(math.Ceil(float64(len(xs)) * fraction))
	if n < 1 {
		n = 1
	}
	return xs[len(xs)-n:]
}

func summarize(xs []float64) Classification {
	if len(xs) == 0 {
		return Classification{}
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	c := Classification{
		Mean:   mean,
		Std:    std,
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
		Window: len(xs),
	}
	if mean != 0 {
		c.CV = std / mean
	}
	return c
}

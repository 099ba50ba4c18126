package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Energy source kinds accepted in an experiment file.
const (
	EnergyConstant = "constant"
	EnergyNoise    = "noise"
	EnergySystem   = "system"
	EnergySeries   = "series"
)

// Experiment is the YAML document the command line runs: one parameter set,
// an energy source, classifier thresholds and the seeds to replicate over.
type Experiment struct {
	Name       string           `yaml:"name" json:"name"`
	Simulation Config           `yaml:"simulation" json:"simulation"`
	Energy     EnergyConfig     `yaml:"energy" json:"energy"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Seeds      []int64          `yaml:"seeds,omitempty" json:"seeds,omitempty"`
}

// EnergyConfig selects and parameterises the per-cycle capacity signal.
type EnergyConfig struct {
	Kind      string    `yaml:"kind" json:"kind"`
	Capacity  float64   `yaml:"capacity" json:"capacity"`   // Constant value, or noise baseline
	Amplitude float64   `yaml:"amplitude" json:"amplitude"` // Noise swing around Capacity
	Frequency float64   `yaml:"frequency" json:"frequency"` // Noise cycles per unit time
	Octaves   int       `yaml:"octaves" json:"octaves"`
	Series    []float64 `yaml:"series,omitempty" json:"series,omitempty"`
}

// ClassifierConfig carries thresholds for both classification strategies.
type ClassifierConfig struct {
	BasinThreshold    float64 `yaml:"basin_threshold" json:"basin_threshold"`
	TailFraction      float64 `yaml:"tail_fraction" json:"tail_fraction"`
	TransientFraction float64 `yaml:"transient_fraction" json:"transient_fraction"`
	CollapseThreshold float64 `yaml:"collapse_threshold" json:"collapse_threshold"`
	SustainThreshold  float64 `yaml:"sustain_threshold" json:"sustain_threshold"`
	OscillationCV     float64 `yaml:"oscillation_cv" json:"oscillation_cv"`
}

// DefaultExperiment returns an experiment wrapping Default().
func DefaultExperiment() *Experiment {
	return &Experiment{
		Name:       "baseline",
		Simulation: Default(),
		Energy: EnergyConfig{
			Kind:      EnergyConstant,
			Capacity:  100,
			Amplitude: 50,
			Frequency: 0.01,
			Octaves:   3,
		},
		Classifier: ClassifierConfig{
			BasinThreshold:    2.5,
			TailFraction:      0.5,
			TransientFraction: 0.5,
			CollapseThreshold: 1.0,
			SustainThreshold:  5.0,
			OscillationCV:     0.3,
		},
	}
}

// LoadExperiment reads an experiment file on top of the defaults, applies
// environment overrides and validates the result.
func LoadExperiment(path string) (*Experiment, error) {
	exp := DefaultExperiment()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment: %w", err)
	}
	if err := yaml.Unmarshal(data, exp); err != nil {
		return nil, fmt.Errorf("parse experiment %s: %w", path, err)
	}

	if err := exp.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// ApplyEnv overrides the seed and cycle count from NRM_SEED and NRM_CYCLES.
func (e *Experiment) ApplyEnv() error {
	if v := os.Getenv("NRM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &ConfigurationError{Param: "NRM_SEED", Value: v, Reason: "not an integer"}
		}
		e.Simulation.Seed = seed
	}
	if v := os.Getenv("NRM_CYCLES"); v != "" {
		cycles, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigurationError{Param: "NRM_CYCLES", Value: v, Reason: "not an integer"}
		}
		e.Simulation.Cycles = cycles
	}
	return nil
}

// Validate checks the simulation, energy and classifier sections.
func (e *Experiment) Validate() error {
	if err := e.Simulation.Validate(); err != nil {
		return err
	}

	switch e.Energy.Kind {
	case EnergyConstant, EnergySystem:
	case EnergyNoise:
		if e.Energy.Octaves < 1 {
			return &ConfigurationError{Param: "energy.octaves", Value: e.Energy.Octaves, Reason: "must be at least 1"}
		}
		if err := RequirePositive("energy.frequency", e.Energy.Frequency); err != nil {
			return err
		}
		if err := RequireNonNegative("energy.amplitude", e.Energy.Amplitude); err != nil {
			return err
		}
	case EnergySeries:
		if len(e.Energy.Series) == 0 {
			return &ConfigurationError{Param: "energy.series", Value: e.Energy.Series, Reason: "must not be empty"}
		}
		for _, v := range e.Energy.Series {
			if err := RequireFinite("energy.series", v); err != nil {
				return err
			}
		}
	default:
		return &ConfigurationError{Param: "energy.kind", Value: e.Energy.Kind, Reason: "unknown energy source"}
	}
	if err := RequireFinite("energy.capacity", e.Energy.Capacity); err != nil {
		return err
	}

	c := e.Classifier
	checks := []error{
		RequireFinite("classifier.basin_threshold", c.BasinThreshold),
		RequireOpenUnit("classifier.tail_fraction", c.TailFraction),
		RequireUnit("classifier.transient_fraction", c.TransientFraction),
		RequireNonNegative("classifier.collapse_threshold", c.CollapseThreshold),
		RequireNonNegative("classifier.sustain_threshold", c.SustainThreshold),
		RequireNonNegative("classifier.oscillation_cv", c.OscillationCV),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if c.TransientFraction >= 1 {
		return &ConfigurationError{Param: "classifier.transient_fraction", Value: c.TransientFraction, Reason: "must leave a steady-state window"}
	}
	if c.SustainThreshold < c.CollapseThreshold {
		return &ConfigurationError{Param: "classifier.sustain_threshold", Value: c.SustainThreshold, Reason: "must not be below collapse_threshold"}
	}
	return nil
}

// RunSeeds returns the seeds to replicate over; the simulation seed alone
// when none are listed.
func (e *Experiment) RunSeeds() []int64 {
	if len(e.Seeds) == 0 {
		return []int64{e.Simulation.Seed}
	}
	return e.Seeds
}

// Package config holds the immutable parameter set a simulation run is built
// from, plus the YAML experiment file the command line wraps around it.
package config

import (
	"fmt"
	"math"
)

// Burst modes for cluster decomposition.
const (
	BurstRedistribute = "redistribute" // Pool cluster energy and share it among members
	BurstRemove       = "remove"       // Members die in the burst
)

// Config is the flat parameter set consumed by the engine. It is passed by
// value so no run can mutate another run's parameters.
type Config struct {
	// Hierarchy
	NPopulations int   `yaml:"n_populations" json:"n_populations"`
	NInitial     int   `yaml:"n_initial" json:"n_initial"` // Seed agents per population
	Cycles       int   `yaml:"cycles" json:"cycles"`
	Seed         int64 `yaml:"seed" json:"seed"` // 0 = draw a fresh seed

	// Spawn and migration frequencies (per cycle).
	FIntra   float64 `yaml:"f_intra" json:"f_intra"`     // Birth attempt fraction
	FMigrate float64 `yaml:"f_migrate" json:"f_migrate"` // Migration attempt fraction

	// Birth-death rates.
	Lambda0      float64 `yaml:"lambda_0" json:"lambda_0"`
	Mu0          float64 `yaml:"mu_0" json:"mu_0"`
	Sigma        float64 `yaml:"sigma" json:"sigma"` // Crowding strength
	K            float64 `yaml:"K" json:"K"`         // Carrying capacity
	Kappa        float64 `yaml:"kappa" json:"kappa"` // Energy gate steepness
	RhoThreshold float64 `yaml:"rho_threshold" json:"rho_threshold"`
	Dt           float64 `yaml:"dt" json:"dt"`

	// Energy economy.
	EnergyInitial        float64 `yaml:"energy_initial" json:"energy_initial"`
	EnergySpawnCost      float64 `yaml:"energy_spawn_cost" json:"energy_spawn_cost"`
	EnergySpawnThreshold float64 `yaml:"energy_spawn_threshold" json:"energy_spawn_threshold"`
	ChildEnergyFraction  float64 `yaml:"child_energy_fraction" json:"child_energy_fraction"` // Of spawn threshold, in (0,1)
	EnergyRechargeRate   float64 `yaml:"energy_recharge_rate" json:"energy_recharge_rate"`   // Gain per cycle per 100 capacity
	EnergyDecay          float64 `yaml:"energy_decay" json:"energy_decay"`                   // Loss per cycle

	// Resonance and decomposition.
	ResonanceEnabled   bool    `yaml:"resonance_enabled" json:"resonance_enabled"`
	ResonanceThreshold float64 `yaml:"resonance_threshold" json:"resonance_threshold"`
	BurstThreshold     float64 `yaml:"burst_threshold" json:"burst_threshold"` // 0 = bursts off
	BurstMode          string  `yaml:"burst_mode" json:"burst_mode"`
	BurstRetention     float64 `yaml:"burst_retention" json:"burst_retention"`

	// Migration gate.
	MigrationEnergyThreshold float64 `yaml:"migration_energy_threshold" json:"migration_energy_threshold"`
	MigrationResetEnergy     bool    `yaml:"migration_reset_energy" json:"migration_reset_energy"`

	// CheckInvariants verifies ownership and energy after every cycle.
	CheckInvariants bool `yaml:"check_invariants" json:"check_invariants"`
}

// Default returns the single-population baseline used across experiments.
func Default() Config {
	return Config{
		NPopulations: 1,
		NInitial:     20,
		Cycles:       3000,
		Seed:         42,

		FIntra:   0.025,
		FMigrate: 0,

		Lambda0:      1.0,
		Mu0:          0.01,
		Sigma:        1.0,
		K:            100,
		Kappa:        0.5,
		RhoThreshold: 10,
		Dt:           1.0,

		EnergyInitial:        50,
		EnergySpawnCost:      10,
		EnergySpawnThreshold: 20,
		ChildEnergyFraction:  0.5,
		EnergyRechargeRate:   1.0,
		EnergyDecay:          0.5,

		ResonanceEnabled:   false,
		ResonanceThreshold: 0.85,
		BurstThreshold:     0,
		BurstMode:          BurstRedistribute,
		BurstRetention:     0.5,

		MigrationEnergyThreshold: 0,
		MigrationResetEnergy:     false,
	}
}

// ChildEnergy is the starting energy of a newborn, always strictly below the
// spawn threshold.
func (c Config) ChildEnergy() float64 {
	return c.ChildEnergyFraction * c.EnergySpawnThreshold
}

// BurstsEnabled reports whether cluster decomposition is active.
func (c Config) BurstsEnabled() bool {
	return c.ResonanceEnabled && c.BurstThreshold > 0
}

// Validate rejects physically meaningless parameters. It never clamps.
func (c Config) Validate() error {
	if c.NPopulations < 1 {
		return &ConfigurationError{Param: "n_populations", Value: c.NPopulations, Reason: "must be at least 1"}
	}
	if c.NInitial < 0 {
		return &ConfigurationError{Param: "n_initial", Value: c.NInitial, Reason: "must be non-negative"}
	}
	if c.Cycles < 0 {
		return &ConfigurationError{Param: "cycles", Value: c.Cycles, Reason: "must be non-negative"}
	}

	checks := []error{
		RequireUnit("f_intra", c.FIntra),
		RequireUnit("f_migrate", c.FMigrate),
		RequireNonNegative("lambda_0", c.Lambda0),
		RequireNonNegative("mu_0", c.Mu0),
		RequireNonNegative("sigma", c.Sigma),
		RequirePositive("K", c.K),
		RequirePositive("kappa", c.Kappa),
		RequireFinite("rho_threshold", c.RhoThreshold),
		RequirePositive("dt", c.Dt),
		RequirePositive("energy_initial", c.EnergyInitial),
		RequireNonNegative("energy_spawn_cost", c.EnergySpawnCost),
		RequirePositive("energy_spawn_threshold", c.EnergySpawnThreshold),
		RequireOpenUnit("child_energy_fraction", c.ChildEnergyFraction),
		RequireNonNegative("energy_recharge_rate", c.EnergyRechargeRate),
		RequireNonNegative("energy_decay", c.EnergyDecay),
		RequireNonNegative("burst_threshold", c.BurstThreshold),
		RequireUnit("burst_retention", c.BurstRetention),
		RequireNonNegative("migration_energy_threshold", c.MigrationEnergyThreshold),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if err := RequireFinite("resonance_threshold", c.ResonanceThreshold); err != nil {
		return err
	}
	if c.ResonanceThreshold < -1 || c.ResonanceThreshold > 1 {
		return &ConfigurationError{Param: "resonance_threshold", Value: c.ResonanceThreshold, Reason: "must lie in [-1, 1]"}
	}

	switch c.BurstMode {
	case BurstRedistribute, BurstRemove:
	default:
		return &ConfigurationError{Param: "burst_mode", Value: c.BurstMode, Reason: fmt.Sprintf("must be %q or %q", BurstRedistribute, BurstRemove)}
	}
	return nil
}

// RequireFinite rejects NaN and infinities.
func RequireFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ConfigurationError{Param: name, Value: v, Reason: "must be finite"}
	}
	return nil
}

// RequireNonNegative rejects negative or non-finite values.
func RequireNonNegative(name string, v float64) error {
	if err := RequireFinite(name, v); err != nil {
		return err
	}
	if v < 0 {
		return &ConfigurationError{Param: name, Value: v, Reason: "must be non-negative"}
	}
	return nil
}

// RequirePositive rejects zero, negative or non-finite values.
func RequirePositive(name string, v float64) error {
	if err := RequireFinite(name, v); err != nil {
		return err
	}
	if v <= 0 {
		return &ConfigurationError{Param: name, Value: v, Reason: "must be positive"}
	}
	return nil
}

// RequireUnit accepts values in [0, 1].
func RequireUnit(name string, v float64) error {
	if err := RequireFinite(name, v); err != nil {
		return err
	}
	if v < 0 || v > 1 {
		return &ConfigurationError{Param: name, Value: v, Reason: "must lie in [0, 1]"}
	}
	return nil
}

// RequireOpenUnit accepts values in (0, 1).
func RequireOpenUnit(name string, v float64) error {
	if err := RequireFinite(name, v); err != nil {
		return err
	}
	if v <= 0 || v >= 1 {
		return &ConfigurationError{Param: name, Value: v, Reason: "must lie in (0, 1)"}
	}
	return nil
}

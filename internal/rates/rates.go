// Package rates turns a population's size and energy into per-cycle birth
// and death rates and draws the stochastic event counts.
//
// The birth rate is λ = λ0·f_intra·g(ρ)·φ², where f_intra is the share of
// the base rate spent on spawn attempts, g the energy gate and φ the
// resonance amplitude. The death rate is μ = μ0·(1 + σ(N/K)²). Counts are
// Poisson with means λ·N·dt and μ·N·dt.
package rates

import (
	"math"

	"github.com/talgya/nrm/internal/config"
)

// Sampler is the random stream the engine draws counts from.
type Sampler interface {
	Poisson(mean float64) int
}

// Params holds the rate constants.
type Params struct {
	Lambda0      float64 // Base birth rate
	FIntra       float64 // Spawn attempt fraction; 0 switches births off
	Mu0          float64 // Base death rate
	Sigma        float64 // Crowding strength
	K            float64 // Carrying capacity
	Kappa        float64 // Gate steepness
	RhoThreshold float64 // Gate midpoint
	Dt           float64 // Time step
}

// ParamsFrom extracts rate constants from a run configuration.
func ParamsFrom(cfg config.Config) Params {
	return Params{
		Lambda0:      cfg.Lambda0,
		FIntra:       cfg.FIntra,
		Mu0:          cfg.Mu0,
		Sigma:        cfg.Sigma,
		K:            cfg.K,
		Kappa:        cfg.Kappa,
		RhoThreshold: cfg.RhoThreshold,
		Dt:           cfg.Dt,
	}
}

// Engine computes rates and draws event counts.
type Engine struct {
	p Params
}

// New validates the constants. Bad values fail here rather than producing
// NaN rates mid-run.
func New(p Params) (*Engine, error) {
	checks := []error{
		config.RequireNonNegative("lambda_0", p.Lambda0),
		config.RequireUnit("f_intra", p.FIntra),
		config.RequireNonNegative("mu_0", p.Mu0),
		config.RequireNonNegative("sigma", p.Sigma),
		config.RequirePositive("K", p.K),
		config.RequirePositive("kappa", p.Kappa),
		config.RequireFinite("rho_threshold", p.RhoThreshold),
		config.RequirePositive("dt", p.Dt),
	}
	for _, err := range checks {
		if err != nil {
			return nil, err
		}
	}
	return &Engine{p: p}, nil
}

// Params returns the engine's constants.
func (e *Engine) Params() Params {
	return e.p
}

// Rates is one population's instantaneous birth (λ) and death (μ) rate.
type Rates struct {
	Birth float64 `json:"birth"`
	Death float64 `json:"death"`
}

// ChargingPressure implements phi.ConjugateField.
func (r Rates) ChargingPressure() float64 { return r.Birth }

// DischargingPressure implements phi.ConjugateField.
func (r Rates) DischargingPressure() float64 { return r.Death }

// Events is the number of births and deaths drawn for one cycle.
type Events struct {
	Births int `json:"births"`
	Deaths int `json:"deaths"`
}

// EnergyGate is the smooth energy cutoff g(ρ) = 1/(1+exp(-κ(ρ-ρ_t))).
// Below the threshold reproduction fades rapidly but is never switched off
// by a hard step.
func EnergyGate(rho, kappa, rhoThreshold float64) float64 {
	x := kappa * (rho - rhoThreshold)
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	ex := math.Exp(x)
	return ex / (1 + ex)
}

// CrowdingPenalty is the death-rate multiplier 1 + σ(N/K)².
func CrowdingPenalty(n int, k, sigma float64) float64 {
	ratio := float64(n) / k
	return 1 + sigma*ratio*ratio
}

// Rates computes λ and μ for a population of n agents holding totalEnergy.
// amplitude is the resonance amplitude φ, clamped to [0, 1]. An empty
// population has zero rates.
func (e *Engine) Rates(n int, totalEnergy, amplitude float64) Rates {
	if n <= 0 {
		return Rates{}
	}
	rho := totalEnergy / float64(n)
	phi := clampUnit(amplitude)

	return Rates{
		Birth: e.p.Lambda0 * e.p.FIntra * EnergyGate(rho, e.p.Kappa, e.p.RhoThreshold) * phi * phi,
		Death: e.p.Mu0 * CrowdingPenalty(n, e.p.K, e.p.Sigma),
	}
}

// Draw samples independent Poisson birth and death counts.
func (e *Engine) Draw(rng Sampler, r Rates, n int) Events {
	if n <= 0 {
		return Events{}
	}
	scale := float64(n) * e.p.Dt
	return Events{
		Births: rng.Poisson(r.Birth * scale),
		Deaths: rng.Poisson(r.Death * scale),
	}
}

// Apply returns the population size after the events, never below zero.
// The engine checks every population against it after births and deaths.
func Apply(n int, ev Events) int {
	next := n + ev.Births - ev.Deaths
	if next < 0 {
		return 0
	}
	return next
}

func clampUnit(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

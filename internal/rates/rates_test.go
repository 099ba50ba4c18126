package rates

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/entropy"
	"github.com/talgya/nrm/internal/phi"
)

func defaultParams() Params {
	return ParamsFrom(config.Default())
}

func TestEnergyGateIsSmooth(t *testing.T) {
	require.InDelta(t, 0.5, EnergyGate(10, 0.5, 10), 1e-12)
	require.Greater(t, EnergyGate(30, 0.5, 10), 0.99)

	below := EnergyGate(0, 0.5, 10)
	require.Greater(t, below, 0.0)
	require.Less(t, below, 0.01)

	// Monotone in ρ.
	prev := 0.0
	for rho := -20.0; rho <= 40; rho += 0.5 {
		g := EnergyGate(rho, 0.5, 10)
		require.GreaterOrEqual(t, g, prev)
		require.False(t, math.IsNaN(g))
		prev = g
	}

	// Far below the threshold the gate underflows to zero without NaN.
	require.Equal(t, 0.0, EnergyGate(0, 1, 1e9))
	require.Equal(t, 1.0, EnergyGate(1e9, 1, 0))
}

func TestCrowdingPenalty(t *testing.T) {
	require.Equal(t, 1.0, CrowdingPenalty(0, 100, 1))
	require.InDelta(t, 2.0, CrowdingPenalty(100, 100, 1), 1e-12)
	require.InDelta(t, 1.5, CrowdingPenalty(50, 100, 2), 1e-12)
}

func TestRates(t *testing.T) {
	e, err := New(defaultParams())
	require.NoError(t, err)

	require.Equal(t, Rates{}, e.Rates(0, 100, 1))

	r := e.Rates(20, 20*10, 1)
	require.InDelta(t, 0.5*0.025, r.Birth, 1e-12)
	require.InDelta(t, 0.01*(1+0.04), r.Death, 1e-12)

	half := e.Rates(20, 20*10, 0.5)
	require.InDelta(t, r.Birth*0.25, half.Birth, 1e-12)
	require.Equal(t, r.Death, half.Death)

	require.Equal(t, 0.0, e.Rates(20, 200, -3).Birth)
	require.Equal(t, r.Birth, e.Rates(20, 200, 7).Birth)

	require.Equal(t, 0.0, phi.HealthRatio(Rates{}))
}

func TestSpawnFrequencyScalesBirthRate(t *testing.T) {
	p := defaultParams()
	p.FIntra = 1
	full, err := New(p)
	require.NoError(t, err)
	p.FIntra = 0.2
	fifth, err := New(p)
	require.NoError(t, err)
	p.FIntra = 0
	off, err := New(p)
	require.NoError(t, err)

	r := full.Rates(20, 20*30, 1)
	require.InDelta(t, EnergyGate(30, p.Kappa, p.RhoThreshold), r.Birth, 1e-12)
	require.InDelta(t, 0.2*r.Birth, fifth.Rates(20, 20*30, 1).Birth, 1e-12)
	require.Zero(t, off.Rates(20, 20*30, 1).Birth)
	require.Equal(t, r.Death, off.Rates(20, 20*30, 1).Death)
}

func TestNewRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
		param  string
	}{
		{"negative lambda", func(p *Params) { p.Lambda0 = -0.1 }, "lambda_0"},
		{"spawn fraction above one", func(p *Params) { p.FIntra = 1.5 }, "f_intra"},
		{"negative mu", func(p *Params) { p.Mu0 = -1 }, "mu_0"},
		{"zero K", func(p *Params) { p.K = 0 }, "K"},
		{"zero kappa", func(p *Params) { p.Kappa = 0 }, "kappa"},
		{"nan threshold", func(p *Params) { p.RhoThreshold = math.NaN() }, "rho_threshold"},
		{"infinite sigma", func(p *Params) { p.Sigma = math.Inf(1) }, "sigma"},
		{"zero dt", func(p *Params) { p.Dt = 0 }, "dt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := defaultParams()
			tc.mutate(&p)
			_, err := New(p)
			var cerr *config.ConfigurationError
			require.True(t, errors.As(err, &cerr))
			require.Equal(t, tc.param, cerr.Param)
		})
	}
}

func TestDrawAndApply(t *testing.T) {
	e, err := New(defaultParams())
	require.NoError(t, err)

	rng := entropy.New(42)
	require.Equal(t, Events{}, e.Draw(rng, Rates{Birth: 5, Death: 5}, 0))
	require.Equal(t, Events{}, e.Draw(rng, Rates{}, 50))

	totalBirths := 0
	for i := 0; i < 2000; i++ {
		ev := e.Draw(rng, Rates{Birth: 0.1}, 20)
		require.Zero(t, ev.Deaths)
		totalBirths += ev.Births
	}
	require.InDelta(t, 2.0, float64(totalBirths)/2000, 0.2)

	require.Equal(t, 0, Apply(3, Events{Births: 1, Deaths: 10}))
	require.Equal(t, 7, Apply(5, Events{Births: 3, Deaths: 1}))
}

func TestDrawIsReproducible(t *testing.T) {
	e, err := New(defaultParams())
	require.NoError(t, err)

	a, b := entropy.New(5), entropy.New(5)
	r := Rates{Birth: 0.3, Death: 0.2}
	for i := 0; i < 100; i++ {
		require.Equal(t, e.Draw(a, r, 40), e.Draw(b, r, 40))
	}
}

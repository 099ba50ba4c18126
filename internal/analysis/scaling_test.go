package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/regime"
)

func TestCriticalFrequency(t *testing.T) {
	points := []Point{
		{FIntra: 0.01, Runs: 4, Viable: 0},
		{FIntra: 0.02, Runs: 4, Viable: 1},
		{FIntra: 0.03, Runs: 4, Viable: 3},
		{FIntra: 0.04, Runs: 4, Viable: 4},
	}
	f, err := CriticalFrequency(points, 0.5)
	require.NoError(t, err)
	require.Equal(t, 0.03, f)

	f, err = CriticalFrequency(points, 1)
	require.NoError(t, err)
	require.Equal(t, 0.04, f)

	_, err = CriticalFrequency(points[:2], 0.5)
	require.True(t, errors.Is(err, ErrNoCritical))

	require.Zero(t, Point{}.Share())
}

func TestAlpha(t *testing.T) {
	a, err := Alpha(0.0125, 0.025)
	require.NoError(t, err)
	require.InDelta(t, 0.5, a, 1e-12)

	_, err = Alpha(0.01, 0)
	var cerr *config.ConfigurationError
	require.True(t, errors.As(err, &cerr))
}

func sweep() Sweep {
	exp := config.DefaultExperiment()
	base := exp.Simulation
	base.Cycles = 300
	base.Mu0 = 0.03
	return Sweep{
		Base:        base,
		Energy:      exp.Energy,
		Classifier:  regime.Basin{Threshold: 2.5, TailFraction: 0.5},
		Frequencies: []float64{0.1, 0},
		Seeds:       []int64{1, 2},
		Workers:     2,
	}
}

func TestSweepRun(t *testing.T) {
	points, err := sweep().Run(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 2)

	// Sorted ascending; no births at zero frequency.
	require.Equal(t, 0.0, points[0].FIntra)
	require.Equal(t, 2, points[0].Runs)
	require.Zero(t, points[0].Viable)
	require.Equal(t, 2, points[1].Viable)

	f, err := CriticalFrequency(points, 0.5)
	require.NoError(t, err)
	require.Equal(t, 0.1, f)
}

func TestSweepIsReproducible(t *testing.T) {
	a, err := sweep().Run(context.Background())
	require.NoError(t, err)
	s := sweep()
	s.Workers = 1
	b, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSweepValidation(t *testing.T) {
	s := sweep()
	s.Seeds = nil
	_, err := s.Run(context.Background())
	require.Error(t, err)

	s = sweep()
	s.Classifier = nil
	_, err = s.Run(context.Background())
	require.Error(t, err)

	_, err = MeasureScaling(context.Background(), sweep(), 1, 0.5)
	require.Error(t, err)
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sweep().Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

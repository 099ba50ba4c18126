package agents

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpawnerIssuesUniqueIDs(t *testing.T) {
	s := NewSpawner(42, false)
	first, err := s.SpawnPopulation(5, 0, 50)
	require.NoError(t, err)
	second, err := s.SpawnPopulation(5, 1, 50)
	require.NoError(t, err)

	seen := map[AgentID]bool{}
	for _, a := range append(first, second...) {
		require.False(t, seen[a.ID], "id %d reused", a.ID)
		seen[a.ID] = true
		require.Nil(t, a.Phase)
		require.Equal(t, 50.0, a.Energy)
	}
	require.Equal(t, PopulationID(1), second[0].PopulationID)
	require.Equal(t, AgentID(10), second[4].ID)
}

func TestSpawnerPhases(t *testing.T) {
	s := NewSpawner(42, true)
	seeds, err := s.SpawnPopulation(3, 0, 50)
	require.NoError(t, err)
	for _, a := range seeds {
		require.True(t, a.HasPhase())
	}
	require.NotEqual(t, *seeds[0].Phase, *seeds[1].Phase)

	reading := map[string]float64{"capacity": 100, "cycle": 12}
	c1, err := s.SpawnChild(seeds[0], 10, 12, reading)
	require.NoError(t, err)
	c2, err := s.SpawnChild(seeds[1], 10, 12, reading)
	require.NoError(t, err)
	require.InDelta(t, 1.0, c1.Phase.Alignment(*c2.Phase), 1e-12)
	require.Equal(t, 12, c1.BornCycle)

	before := *c1.Phase
	require.NoError(t, s.Rephase(c1, reading))
	require.NotEqual(t, before, *c1.Phase)

	_, err = s.SpawnChild(seeds[0], 10, 13, map[string]float64{"capacity": math.NaN()})
	require.Error(t, err)
}

func TestSpawnerReplaysForSameSeed(t *testing.T) {
	a, err := NewSpawner(7, true).SpawnPopulation(4, 2, 30)
	require.NoError(t, err)
	b, err := NewSpawner(7, true).SpawnPopulation(4, 2, 30)
	require.NoError(t, err)
	for i := range a {
		require.Equal(t, *a[i], *b[i])
	}
}

func TestSpendNeverGoesNegative(t *testing.T) {
	a := &Agent{Energy: 5}
	require.Equal(t, 3.0, a.Spend(3))
	require.Equal(t, 2.0, a.Spend(10))
	require.Equal(t, 0.0, a.Energy)
	require.False(t, a.Alive())
	require.Equal(t, 0.0, a.Spend(-1))
}

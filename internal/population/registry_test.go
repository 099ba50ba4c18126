package population

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talgya/nrm/internal/agents"
)

func seeded(t *testing.T, n, perPop int) *Registry {
	t.Helper()
	r := NewRegistry(n)
	s := agents.NewSpawner(1, false)
	for i := 0; i < n; i++ {
		members, err := s.SpawnPopulation(perPop, agents.PopulationID(i), 10)
		require.NoError(t, err)
		for _, a := range members {
			require.NoError(t, r.Add(a))
		}
	}
	return r
}

func TestRegistryAggregates(t *testing.T) {
	r := seeded(t, 2, 3)
	require.Equal(t, 6, r.TotalAgents())
	require.Equal(t, []int{3, 3}, r.Sizes())
	require.Equal(t, 60.0, r.TotalEnergy())
	require.Equal(t, 10.0, r.Population(0).MeanEnergy())
	require.Equal(t, 0.0, New(9).MeanEnergy())
	require.NoError(t, r.Verify())
}

func TestRegistryRejectsDuplicatesAndUnknowns(t *testing.T) {
	r := seeded(t, 1, 1)
	a := r.Population(0).At(0)

	require.ErrorIs(t, r.Add(a), ErrDuplicateAgent)
	require.ErrorIs(t, r.Add(&agents.Agent{ID: 99, PopulationID: 5, Energy: 1}), ErrUnknownPopulation)

	_, err := r.Remove(12345)
	require.ErrorIs(t, err, ErrUnknownAgent)
	_, err = r.Move(a.ID, 3)
	require.ErrorIs(t, err, ErrUnknownPopulation)
}

func TestMoveIsRelationChange(t *testing.T) {
	r := seeded(t, 2, 2)
	a := r.Population(0).At(0)

	moved, err := r.Move(a.ID, 1)
	require.NoError(t, err)
	require.Same(t, a, moved)
	require.Equal(t, agents.PopulationID(1), a.PopulationID)
	require.False(t, r.Population(0).Contains(a.ID))
	require.True(t, r.Population(1).Contains(a.ID))
	require.Equal(t, 4, r.TotalAgents())

	owner, ok := r.Owner(a.ID)
	require.True(t, ok)
	require.Equal(t, agents.PopulationID(1), owner)
	require.NoError(t, r.Verify())
}

func TestRemoveKeepsIndexConsistent(t *testing.T) {
	r := seeded(t, 1, 5)
	p := r.Population(0)
	victim := p.At(1).ID

	removed, err := r.Remove(victim)
	require.NoError(t, err)
	require.Equal(t, victim, removed.ID)
	require.Equal(t, 4, p.Size())
	require.Nil(t, p.Get(victim))
	require.NoError(t, r.Verify())

	for p.Size() > 0 {
		_, err := r.Remove(p.At(0).ID)
		require.NoError(t, err)
	}
	require.True(t, r.Extinct())
	require.Empty(t, r.NonEmpty())
	require.NotNil(t, r.Population(0))
}

func TestVerifyCatchesCorruption(t *testing.T) {
	r := seeded(t, 2, 2)
	r.Population(0).At(0).Energy = -1
	require.Error(t, r.Verify())

	r = seeded(t, 2, 2)
	r.Population(0).At(0).PopulationID = 1
	require.Error(t, r.Verify())
}

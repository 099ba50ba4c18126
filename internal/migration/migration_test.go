package migration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talgya/nrm/internal/agents"
	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/entropy"
	"github.com/talgya/nrm/internal/population"
)

// script replays fixed picks.
type script struct {
	picks []int
}

func (s *script) Intn(n int) int {
	v := s.picks[0]
	s.picks = s.picks[1:]
	return v % n
}

func fill(t *testing.T, r *population.Registry, pop agents.PopulationID, count int, energy float64, next *agents.AgentID) {
	t.Helper()
	for i := 0; i < count; i++ {
		*next++
		require.NoError(t, r.Add(&agents.Agent{ID: *next, PopulationID: pop, Energy: energy}))
	}
}

func TestAttempts(t *testing.T) {
	require.Zero(t, Engine{}.Attempts(100))
	require.Zero(t, Engine{Rate: 0.1}.Attempts(0))
	require.Equal(t, 1, Engine{Rate: 0.001}.Attempts(10))
	require.Equal(t, 5, Engine{Rate: 0.05}.Attempts(100))
}

func TestMigrateNeedsTwoOccupiedPopulations(t *testing.T) {
	var next agents.AgentID
	r := population.NewRegistry(3)
	fill(t, r, 0, 10, 5, &next)

	moves, err := Engine{Rate: 1}.Migrate(r, entropy.New(1))
	require.NoError(t, err)
	require.Empty(t, moves)
	require.Equal(t, []int{10, 0, 0}, r.Sizes())

	single := population.NewRegistry(1)
	fill(t, single, 0, 10, 5, &next)
	moves, err = Engine{Rate: 1}.Migrate(single, entropy.New(1))
	require.NoError(t, err)
	require.Empty(t, moves)
}

func TestMigrateMovesIntoOtherPopulation(t *testing.T) {
	var next agents.AgentID
	r := population.NewRegistry(3)
	fill(t, r, 0, 2, 5, &next)
	fill(t, r, 1, 2, 5, &next)

	// Source: occupied[0] = population 0. Destination pick 1 skips the
	// source and lands on population 2. Migrant: member 1 of population 0.
	rng := &script{picks: []int{0, 1, 1}}
	e := Engine{Rate: 0.25}
	moves, err := e.Migrate(r, rng)
	require.NoError(t, err)
	require.Equal(t, []Move{{Agent: 2, From: 0, To: 2}}, moves)
	require.Equal(t, []int{1, 2, 1}, r.Sizes())

	owner, ok := r.Owner(2)
	require.True(t, ok)
	require.Equal(t, agents.PopulationID(2), owner)
	require.Equal(t, 5.0, r.Population(2).Get(2).Energy)
	require.NoError(t, r.Verify())
}

func TestMigrateEnergyGate(t *testing.T) {
	var next agents.AgentID
	r := population.NewRegistry(2)
	fill(t, r, 0, 2, 5, &next)
	fill(t, r, 1, 2, 5, &next)

	moves, err := Engine{Rate: 1, EnergyThreshold: 10}.Migrate(r, entropy.New(3))
	require.NoError(t, err)
	require.Empty(t, moves)
	require.Equal(t, []int{2, 2}, r.Sizes())
}

func TestMigrateResetEnergy(t *testing.T) {
	var next agents.AgentID
	r := population.NewRegistry(2)
	fill(t, r, 0, 3, 40, &next)
	fill(t, r, 1, 3, 40, &next)

	cfg := config.Default()
	cfg.FMigrate = 0.5
	cfg.MigrationResetEnergy = true
	e := FromConfig(cfg)
	require.Equal(t, cfg.ChildEnergy(), e.ResetValue)

	moves, err := e.Migrate(r, entropy.New(9))
	require.NoError(t, err)
	require.Len(t, moves, 3)
	for _, m := range moves {
		owner, _ := r.Owner(m.Agent)
		require.NotEqual(t, m.From, m.To)
		require.Equal(t, e.ResetValue, r.Population(owner).Get(m.Agent).Energy)
	}
	require.Equal(t, 6, r.TotalAgents())
	require.NoError(t, r.Verify())
}

func TestMigrateConservesAgents(t *testing.T) {
	var next agents.AgentID
	r := population.NewRegistry(4)
	for p := 0; p < 4; p++ {
		fill(t, r, agents.PopulationID(p), 25, 10, &next)
	}
	rng := entropy.New(11)
	e := Engine{Rate: 0.1}
	for i := 0; i < 200; i++ {
		_, err := e.Migrate(r, rng)
		require.NoError(t, err)
		require.Equal(t, 100, r.TotalAgents())
		require.NoError(t, r.Verify())
	}
}

package resonance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talgya/nrm/internal/agents"
	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/phi"
	"github.com/talgya/nrm/internal/population"
)

func phased(id agents.AgentID, pop agents.PopulationID, energy float64, p phi.Vector) *agents.Agent {
	return &agents.Agent{ID: id, PopulationID: pop, Energy: energy, Phase: &p}
}

// registry builds one population: agents 1-3 aligned, 4-5 aligned with each
// other but opposite to the first group, 6 unphased.
func registry(t *testing.T) *population.Registry {
	t.Helper()
	r := population.NewRegistry(2)
	a := phi.Vector{0.1, 0.2, 0.3}
	b := phi.Vector{0.1 + math.Pi, 0.2 + math.Pi, 0.3 + math.Pi}
	for _, ag := range []*agents.Agent{
		phased(1, 0, 10, a),
		phased(2, 0, 10, phi.Vector{0.12, 0.21, 0.29}),
		phased(3, 0, 10, a),
		phased(4, 0, 5, b),
		phased(5, 0, 5, b),
		{ID: 6, PopulationID: 0, Energy: 10},
		phased(7, 1, 10, a),
	} {
		require.NoError(t, r.Add(ag))
	}
	return r
}

func TestDetectGreedyDisjointClusters(t *testing.T) {
	r := registry(t)
	d := Detector{Threshold: DefaultThreshold}

	clusters := d.Detect(r.Population(0))
	require.Len(t, clusters, 2)
	require.Equal(t, []agents.AgentID{1, 2, 3}, clusters[0].Members)
	require.InDelta(t, 30.0, clusters[0].Energy, 1e-12)
	require.Equal(t, []agents.AgentID{4, 5}, clusters[1].Members)

	seen := map[agents.AgentID]bool{}
	for _, c := range clusters {
		for _, id := range c.Members {
			require.False(t, seen[id])
			seen[id] = true
		}
	}

	// A lone agent forms no cluster.
	require.Empty(t, d.Detect(r.Population(1)))
	require.Len(t, d.DetectAll(r), 2)
}

func TestDetectIsRecomputedFresh(t *testing.T) {
	r := registry(t)
	d := Detector{Threshold: DefaultThreshold}
	first := d.Detect(r.Population(0))

	p := phi.Vector{2, 4, 1}
	r.Population(0).Get(2).Phase = &p
	second := d.Detect(r.Population(0))

	require.Equal(t, []agents.AgentID{1, 2, 3}, first[0].Members)
	require.Equal(t, []agents.AgentID{1, 3}, second[0].Members)
}

func TestAmplitude(t *testing.T) {
	r := registry(t)
	d := Detector{Threshold: DefaultThreshold}
	clusters := d.DetectAll(r)

	require.InDelta(t, 1.0, Coherence(r.Population(0), clusters), 1e-12)
	require.InDelta(t, 1.0, Amplitude(r.Population(0), clusters), 1e-12)
	require.Equal(t, 0.0, Coherence(r.Population(1), clusters))
	require.InDelta(t, AmplitudeFloor, Amplitude(r.Population(1), clusters), 1e-12)

	// Half the phased agents clustered.
	require.NoError(t, r.Add(phased(8, 1, 10, phi.Vector{1, 2, 3})))
	require.NoError(t, r.Add(phased(9, 1, 10, phi.Vector{1, 2, 3})))
	clusters = d.DetectAll(r)
	require.InDelta(t, 2.0/3.0, Coherence(r.Population(1), clusters), 1e-12)
	require.InDelta(t, AmplitudeFloor+(1-AmplitudeFloor)*2/3, Amplitude(r.Population(1), clusters), 1e-12)

	plain := population.NewRegistry(1)
	require.NoError(t, plain.Add(&agents.Agent{ID: 1, Energy: 3}))
	require.Equal(t, -1.0, Coherence(plain.Population(0), nil))
	require.Equal(t, 1.0, Amplitude(plain.Population(0), nil))
}

func TestDecomposeRedistribute(t *testing.T) {
	r := registry(t)
	clusters := Detector{Threshold: DefaultThreshold}.Detect(r.Population(0))

	rephased := 0
	d := Decomposer{Threshold: 20, Mode: config.BurstRedistribute, Retention: 0.5}
	out, err := d.Decompose(r, clusters, func(a *agents.Agent) error {
		rephased++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Bursts)
	require.Zero(t, out.Deaths)
	require.Equal(t, 3, rephased)
	require.Len(t, out.Survivors, 1)
	for _, id := range []agents.AgentID{1, 2, 3} {
		require.InDelta(t, 5.0, r.Population(0).Get(id).Energy, 1e-12)
	}
	require.NoError(t, r.Verify())
}

func TestDecomposeRedistributeWithoutRetentionRemoves(t *testing.T) {
	r := registry(t)
	clusters := Detector{Threshold: DefaultThreshold}.Detect(r.Population(0))

	d := Decomposer{Threshold: 20, Mode: config.BurstRedistribute, Retention: 0}
	out, err := d.Decompose(r, clusters, nil)
	require.NoError(t, err)
	require.Equal(t, 3, out.Deaths)
	require.Equal(t, 3, r.Population(0).Size())
	require.NoError(t, r.Verify())
}

func TestDecomposeRemove(t *testing.T) {
	r := registry(t)
	clusters := Detector{Threshold: DefaultThreshold}.Detect(r.Population(0))

	d := Decomposer{Threshold: 5, Mode: config.BurstRemove}
	out, err := d.Decompose(r, clusters, nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.Bursts)
	require.Equal(t, 5, out.Deaths)
	for id := agents.AgentID(1); id <= 5; id++ {
		_, ok := r.Owner(id)
		require.False(t, ok, "agent %d", id)
	}
	require.Equal(t, 1, r.Population(0).Size())
	require.NoError(t, r.Verify())
}

func TestDecomposeDisabled(t *testing.T) {
	r := registry(t)
	clusters := Detector{Threshold: DefaultThreshold}.Detect(r.Population(0))

	out, err := Decomposer{}.Decompose(r, clusters, nil)
	require.NoError(t, err)
	require.Zero(t, out.Bursts)
	require.Equal(t, clusters, out.Survivors)
}

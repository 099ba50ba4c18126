// Package resonance groups phase-aligned agents into transient clusters and
// decomposes clusters whose pooled energy crosses the burst threshold.
// Clusters are rebuilt from scratch on every pass; nothing carries over.
package resonance

import (
	"github.com/talgya/nrm/internal/agents"
	"github.com/talgya/nrm/internal/phi"
	"github.com/talgya/nrm/internal/population"
)

// DefaultThreshold is the alignment two phases need to resonate.
const DefaultThreshold = 0.85

// AmplitudeFloor is the amplitude of a phased population with no clusters.
var AmplitudeFloor = phi.Matter

// Cluster is a set of mutually resonant agents within one population.
type Cluster struct {
	PopulationID agents.PopulationID `json:"population_id"`
	Members      []agents.AgentID    `json:"members"`
	Energy       float64             `json:"energy"` // Pooled member energy at detection
}

// Size returns the number of members.
func (c Cluster) Size() int {
	return len(c.Members)
}

// Detector performs greedy seed-based clustering.
type Detector struct {
	Threshold float64
}

// Detect clusters one population. Each unclustered agent in turn seeds a
// cluster and absorbs every later unclustered agent aligned with it. Only
// clusters with at least two members are returned; no agent appears twice.
func (d Detector) Detect(p *population.Population) []Cluster {
	members := p.Agents()
	assigned := make([]bool, len(members))
	var clusters []Cluster

	for i, seed := range members {
		if assigned[i] || !seed.HasPhase() {
			continue
		}
		assigned[i] = true
		c := Cluster{
			PopulationID: p.ID,
			Members:      []agents.AgentID{seed.ID},
			Energy:       seed.Energy,
		}
		for j := i + 1; j < len(members); j++ {
			other := members[j]
			if assigned[j] || !other.HasPhase() {
				continue
			}
			if seed.Phase.Alignment(*other.Phase) >= d.Threshold {
				assigned[j] = true
				c.Members = append(c.Members, other.ID)
				c.Energy += other.Energy
			}
		}
		if c.Size() > 1 {
			clusters = append(clusters, c)
		}
	}
	return clusters
}

// DetectAll clusters every population in ID order.
func (d Detector) DetectAll(reg *population.Registry) []Cluster {
	var out []Cluster
	for _, p := range reg.Populations() {
		out = append(out, d.Detect(p)...)
	}
	return out
}

// Coherence returns the share of a population's phased agents that sit in a
// multi-member cluster, or -1 when it has no phased agents.
func Coherence(p *population.Population, clusters []Cluster) float64 {
	phased := 0
	for _, a := range p.Agents() {
		if a.HasPhase() {
			phased++
		}
	}
	if phased == 0 {
		return -1
	}

	clustered := 0
	for _, c := range clusters {
		if c.PopulationID != p.ID {
			continue
		}
		for _, id := range c.Members {
			if p.Contains(id) {
				clustered++
			}
		}
	}
	return float64(clustered) / float64(phased)
}

// Amplitude returns the resonance amplitude φ of a population, rising
// linearly from AmplitudeFloor with no clustered agents to 1 when every
// phased agent is clustered. Populations without phased agents are not
// resonance-limited and report 1.
func Amplitude(p *population.Population, clusters []Cluster) float64 {
	c := Coherence(p, clusters)
	if c < 0 {
		return 1
	}
	return AmplitudeFloor + (1-AmplitudeFloor)*c
}

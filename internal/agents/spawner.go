// Agent spawning: seed populations at start-up and children from birth
// events. Phases come from the phase bridge, so agents created under the
// same reading resonate with each other.
package agents

import (
	"fmt"

	"github.com/talgya/nrm/internal/phi"
)

// seedFold keeps seed-derived bridge inputs small enough that consecutive
// agent ids still move the phase.
const seedFold = 1_000_003

// Spawner issues agent identities for one run.
type Spawner struct {
	nextID    AgentID
	seed      int64
	withPhase bool
}

// NewSpawner creates a spawner. When withPhase is set every agent carries a
// phase vector.
func NewSpawner(seed int64, withPhase bool) *Spawner {
	return &Spawner{
		nextID:    1,
		seed:      seed,
		withPhase: withPhase,
	}
}

// SpawnPopulation creates the seed agents of one population.
func (s *Spawner) SpawnPopulation(count int, pop PopulationID, energy float64) ([]*Agent, error) {
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		a := s.issue(pop, energy, 0)
		if s.withPhase {
			p, err := phi.RealityToPhase(map[string]float64{
				"agent":      float64(a.ID),
				"population": float64(pop),
				"seed":       float64(s.seed % seedFold),
			})
			if err != nil {
				return nil, fmt.Errorf("seed agent %d phase: %w", a.ID, err)
			}
			a.Phase = &p
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// SpawnChild creates a newborn in the parent's population. The child's phase
// comes from the cycle's reading, so a cohort born together is aligned.
func (s *Spawner) SpawnChild(parent *Agent, energy float64, cycle int, reading map[string]float64) (*Agent, error) {
	child := s.issue(parent.PopulationID, energy, cycle)
	if s.withPhase {
		p, err := phi.RealityToPhase(reading)
		if err != nil {
			return nil, fmt.Errorf("child %d phase: %w", child.ID, err)
		}
		child.Phase = &p
	}
	return child, nil
}

// Rephase draws a fresh phase for an agent that went through decomposition.
func (s *Spawner) Rephase(a *Agent, reading map[string]float64) error {
	if !s.withPhase {
		return nil
	}
	in := make(map[string]float64, len(reading)+1)
	for k, v := range reading {
		in[k] = v
	}
	in["agent"] = float64(a.ID)
	p, err := phi.RealityToPhase(in)
	if err != nil {
		return fmt.Errorf("rephase agent %d: %w", a.ID, err)
	}
	a.Phase = &p
	return nil
}

func (s *Spawner) issue(pop PopulationID, energy float64, cycle int) *Agent {
	id := s.nextID
	s.nextID++
	return &Agent{
		ID:           id,
		PopulationID: pop,
		Energy:       energy,
		BornCycle:    cycle,
	}
}

package resonance

import (
	"fmt"

	"github.com/talgya/nrm/internal/agents"
	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/population"
)

// Decomposer bursts clusters whose pooled energy reaches Threshold.
type Decomposer struct {
	Threshold float64 // Pooled energy that triggers a burst; <= 0 disables bursts
	Mode      string  // config.BurstRedistribute or config.BurstRemove
	Retention float64 // Share of pooled energy kept when redistributing
}

// Outcome summarises one decomposition pass.
type Outcome struct {
	Bursts    int       // Clusters decomposed
	Deaths    int       // Agents removed by bursts
	Survivors []Cluster // Clusters that did not burst
}

// Decompose evaluates every cluster. In redistribute mode a burst shares
// Retention of the pooled energy equally among the members and re-draws
// their phases through rephase; members left without energy are removed.
// In remove mode the members die.
func (d Decomposer) Decompose(reg *population.Registry, clusters []Cluster, rephase func(*agents.Agent) error) (Outcome, error) {
	var out Outcome
	if d.Threshold <= 0 {
		out.Survivors = clusters
		return out, nil
	}

	for _, c := range clusters {
		if c.Energy < d.Threshold {
			out.Survivors = append(out.Survivors, c)
			continue
		}
		out.Bursts++

		switch d.Mode {
		case config.BurstRemove:
			for _, id := range c.Members {
				if _, err := reg.Remove(id); err != nil {
					return out, fmt.Errorf("burst remove: %w", err)
				}
				out.Deaths++
			}

		default:
			share := c.Energy * d.Retention / float64(c.Size())
			p := reg.Population(c.PopulationID)
			for _, id := range c.Members {
				a := p.Get(id)
				if a == nil {
					return out, fmt.Errorf("burst member %d missing from population %d", id, c.PopulationID)
				}
				a.Energy = share
				if !a.Alive() {
					if _, err := reg.Remove(id); err != nil {
						return out, fmt.Errorf("burst remove: %w", err)
					}
					out.Deaths++
					continue
				}
				if rephase != nil {
					if err := rephase(a); err != nil {
						return out, err
					}
				}
			}
		}
	}
	return out, nil
}

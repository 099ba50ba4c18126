// Package population provides the agent containers of the hierarchy and the
// registry that tracks which population owns each agent.
package population

import (
	"github.com/talgya/nrm/internal/agents"
)

// Population is a mutable set of agents with one fixed identity. It owns no
// dynamics of its own; it persists for the whole run even when empty.
type Population struct {
	ID agents.PopulationID `json:"id"`

	members []*agents.Agent
	index   map[agents.AgentID]int // agent ID → position in members
}

// New creates an empty population.
func New(id agents.PopulationID) *Population {
	return &Population{
		ID:    id,
		index: make(map[agents.AgentID]int),
	}
}

// Agents returns the current members. Callers must not modify the slice;
// membership changes go through the Registry.
func (p *Population) Agents() []*agents.Agent {
	return p.members
}

// At returns the i-th member.
func (p *Population) At(i int) *agents.Agent {
	return p.members[i]
}

// Get returns a member by ID, or nil.
func (p *Population) Get(id agents.AgentID) *agents.Agent {
	i, ok := p.index[id]
	if !ok {
		return nil
	}
	return p.members[i]
}

// Contains reports whether the agent is a member.
func (p *Population) Contains(id agents.AgentID) bool {
	_, ok := p.index[id]
	return ok
}

// Size returns the number of members.
func (p *Population) Size() int {
	return len(p.members)
}

// Empty reports whether the population has no members.
func (p *Population) Empty() bool {
	return len(p.members) == 0
}

// TotalEnergy returns the summed energy of all members.
func (p *Population) TotalEnergy() float64 {
	total := 0.0
	for _, a := range p.members {
		total += a.Energy
	}
	return total
}

// MeanEnergy returns the energy density ρ; 0 for an empty population.
func (p *Population) MeanEnergy() float64 {
	if len(p.members) == 0 {
		return 0
	}
	return p.TotalEnergy() / float64(len(p.members))
}

func (p *Population) add(a *agents.Agent) {
	p.index[a.ID] = len(p.members)
	p.members = append(p.members, a)
}

// remove swaps the last member into the vacated slot.
func (p *Population) remove(id agents.AgentID) *agents.Agent {
	i, ok := p.index[id]
	if !ok {
		return nil
	}
	a := p.members[i]
	last := len(p.members) - 1
	if i != last {
		moved := p.members[last]
		p.members[i] = moved
		p.index[moved.ID] = i
	}
	p.members[last] = nil
	p.members = p.members[:last]
	delete(p.index, id)
	return a
}

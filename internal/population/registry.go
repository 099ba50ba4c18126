package population

import (
	"errors"
	"fmt"

	"github.com/talgya/nrm/internal/agents"
)

// Registry errors.
var (
	ErrUnknownPopulation = errors.New("unknown population")
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrDuplicateAgent    = errors.New("agent already owned")
)

// Registry is the set of all populations of a run. It is the only mutator of
// membership, so an agent belongs to exactly one population at a time.
type Registry struct {
	pops  []*Population
	owner map[agents.AgentID]agents.PopulationID
}

// NewRegistry creates n empty populations with IDs 0..n-1.
func NewRegistry(n int) *Registry {
	r := &Registry{
		pops:  make([]*Population, n),
		owner: make(map[agents.AgentID]agents.PopulationID),
	}
	for i := range r.pops {
		r.pops[i] = New(agents.PopulationID(i))
	}
	return r
}

// Populations returns every population in ID order.
func (r *Registry) Populations() []*Population {
	return r.pops
}

// Population returns the population with the given ID, or nil.
func (r *Registry) Population(id agents.PopulationID) *Population {
	if id < 0 || int(id) >= len(r.pops) {
		return nil
	}
	return r.pops[id]
}

// Len returns the number of populations.
func (r *Registry) Len() int {
	return len(r.pops)
}

// Add places an agent into the population named by its PopulationID.
func (r *Registry) Add(a *agents.Agent) error {
	p := r.Population(a.PopulationID)
	if p == nil {
		return fmt.Errorf("add agent %d to population %d: %w", a.ID, a.PopulationID, ErrUnknownPopulation)
	}
	if owner, ok := r.owner[a.ID]; ok {
		return fmt.Errorf("add agent %d (owned by %d): %w", a.ID, owner, ErrDuplicateAgent)
	}
	p.add(a)
	r.owner[a.ID] = a.PopulationID
	return nil
}

// Remove takes an agent out of the hierarchy and returns it.
func (r *Registry) Remove(id agents.AgentID) (*agents.Agent, error) {
	owner, ok := r.owner[id]
	if !ok {
		return nil, fmt.Errorf("remove agent %d: %w", id, ErrUnknownAgent)
	}
	a := r.pops[owner].remove(id)
	delete(r.owner, id)
	return a, nil
}

// Move changes an agent's owning population. The agent is never copied.
func (r *Registry) Move(id agents.AgentID, to agents.PopulationID) (*agents.Agent, error) {
	dest := r.Population(to)
	if dest == nil {
		return nil, fmt.Errorf("move agent %d to %d: %w", id, to, ErrUnknownPopulation)
	}
	owner, ok := r.owner[id]
	if !ok {
		return nil, fmt.Errorf("move agent %d: %w", id, ErrUnknownAgent)
	}
	a := r.pops[owner].remove(id)
	a.PopulationID = to
	dest.add(a)
	r.owner[id] = to
	return a, nil
}

// Owner returns the population currently holding an agent.
func (r *Registry) Owner(id agents.AgentID) (agents.PopulationID, bool) {
	p, ok := r.owner[id]
	return p, ok
}

// TotalAgents returns the number of agents across all populations.
func (r *Registry) TotalAgents() int {
	return len(r.owner)
}

// TotalEnergy returns the summed energy across all populations.
func (r *Registry) TotalEnergy() float64 {
	total := 0.0
	for _, p := range r.pops {
		total += p.TotalEnergy()
	}
	return total
}

// Sizes returns the size of every population in ID order.
func (r *Registry) Sizes() []int {
	sizes := make([]int, len(r.pops))
	for i, p := range r.pops {
		sizes[i] = p.Size()
	}
	return sizes
}

// NonEmpty returns the populations that currently hold agents.
func (r *Registry) NonEmpty() []*Population {
	var out []*Population
	for _, p := range r.pops {
		if !p.Empty() {
			out = append(out, p)
		}
	}
	return out
}

// Extinct reports whether every population is empty.
func (r *Registry) Extinct() bool {
	return len(r.owner) == 0
}

// Verify checks single ownership and non-negative energy across the
// hierarchy. Any violation is an implementation bug.
func (r *Registry) Verify() error {
	seen := 0
	for _, p := range r.pops {
		for i, a := range p.members {
			if a.PopulationID != p.ID {
				return fmt.Errorf("agent %d held by population %d but names %d", a.ID, p.ID, a.PopulationID)
			}
			owner, ok := r.owner[a.ID]
			if !ok || owner != p.ID {
				return fmt.Errorf("agent %d held by population %d but registered to %d", a.ID, p.ID, owner)
			}
			if idx, ok := p.index[a.ID]; !ok || idx != i {
				return fmt.Errorf("agent %d index out of sync in population %d", a.ID, p.ID)
			}
			if a.Energy < 0 {
				return fmt.Errorf("agent %d has negative energy %g", a.ID, a.Energy)
			}
			seen++
		}
	}
	if seen != len(r.owner) {
		return fmt.Errorf("registry tracks %d agents but populations hold %d", len(r.owner), seen)
	}
	return nil
}

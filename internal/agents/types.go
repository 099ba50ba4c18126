// Package agents provides the agent data model and the spawner that issues
// agent identities for a run.
package agents

import (
	"github.com/talgya/nrm/internal/phi"
)

// AgentID is a unique identifier for an agent. IDs are never reused within a run.
type AgentID uint64

// PopulationID identifies a population for the lifetime of a run.
type PopulationID int

// Agent is the atomic reproducing unit.
type Agent struct {
	ID           AgentID      `json:"id"`
	PopulationID PopulationID `json:"population_id"` // Owning population (relation, not ownership)
	Energy       float64      `json:"energy"`        // Non-negative; at 0 the agent is removed

	// Phase is set only when resonance is active.
	Phase *phi.Vector `json:"phase,omitempty"`

	BornCycle int `json:"born_cycle"` // 0 for seed agents
}

// Alive reports whether the agent still has energy.
func (a *Agent) Alive() bool {
	return a.Energy > 0
}

// HasPhase reports whether the agent takes part in resonance.
func (a *Agent) HasPhase() bool {
	return a.Phase != nil
}

// Spend removes energy from the agent, never going below zero. It returns
// the energy actually removed.
func (a *Agent) Spend(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	if amount > a.Energy {
		amount = a.Energy
	}
	a.Energy -= amount
	return amount
}

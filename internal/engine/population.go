// Population dynamics: energy recharge and decay, births and deaths.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/nrm/internal/agents"
	"github.com/talgya/nrm/internal/logging"
	"github.com/talgya/nrm/internal/population"
)

// recharge credits every agent its share of the cycle's capacity, applies
// decay and removes the agents left without energy.
func (s *Simulation) recharge(capacity float64) (int, error) {
	gain := s.cfg.EnergyRechargeRate * capacity / 100
	for _, p := range s.registry.Populations() {
		for _, a := range p.Agents() {
			a.Energy += gain
			a.Spend(s.cfg.EnergyDecay)
		}
	}
	return s.removeDepleted()
}

// removeDepleted removes every agent whose energy has reached zero.
func (s *Simulation) removeDepleted() (int, error) {
	var depleted []agents.AgentID
	for _, p := range s.registry.Populations() {
		for _, a := range p.Agents() {
			if !a.Alive() {
				depleted = append(depleted, a.ID)
			}
		}
	}
	for _, id := range depleted {
		if _, err := s.registry.Remove(id); err != nil {
			return 0, fmt.Errorf("remove depleted: %w", err)
		}
	}
	return len(depleted), nil
}

// births applies the drawn births of one population. Each birth picks a
// random parent among the members present before any births that hold at
// least the spawn threshold, and the parent pays the spawn cost. Births stop
// short of n only when no member can afford one. It returns the children
// born and the parents exhausted by paying.
func (s *Simulation) births(p *population.Population, n int, reading map[string]float64) (born, exhausted int, err error) {
	if n == 0 {
		return 0, 0, nil
	}

	var eligible []*agents.Agent
	for _, a := range p.Agents() {
		if a.Energy >= s.cfg.EnergySpawnThreshold {
			eligible = append(eligible, a)
		}
	}

	spent := false
	for born < n && len(eligible) > 0 {
		i := s.rng.Intn(len(eligible))
		parent := eligible[i]
		parent.Spend(s.cfg.EnergySpawnCost)
		if parent.Energy < s.cfg.EnergySpawnThreshold {
			eligible[i] = eligible[len(eligible)-1]
			eligible = eligible[:len(eligible)-1]
		}
		spent = spent || !parent.Alive()

		child, err := s.spawner.SpawnChild(parent, s.cfg.ChildEnergy(), s.cycle, reading)
		if err != nil {
			return born, 0, err
		}
		if err := s.registry.Add(child); err != nil {
			return born, 0, fmt.Errorf("add child: %w", err)
		}
		born++
	}
	if born < n {
		slog.Log(context.Background(), logging.LevelTrace, "births short of draw",
			"population", p.ID, "cycle", s.cycle, "drawn", n, "born", born)
	}

	// A spawn cost at or above the threshold can exhaust a parent.
	if spent {
		exhausted, err = s.removeDepleted()
	}
	return born, exhausted, err
}

// deaths removes n uniformly chosen members.
func (s *Simulation) deaths(p *population.Population, n int) (int, error) {
	died := 0
	for ; died < n && !p.Empty(); died++ {
		victim := p.At(s.rng.Intn(p.Size()))
		if _, err := s.registry.Remove(victim.ID); err != nil {
			return died, fmt.Errorf("remove victim: %w", err)
		}
	}
	return died, nil
}

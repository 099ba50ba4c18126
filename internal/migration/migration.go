// Package migration moves agents between populations. A move is a change of
// owning population through the registry; agents are never copied.
package migration

import (
	"fmt"

	"github.com/talgya/nrm/internal/agents"
	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/population"
)

// Picker is the random stream used to choose sources, destinations and
// migrants.
type Picker interface {
	Intn(n int) int
}

// Engine runs one migration pass per cycle.
type Engine struct {
	Rate            float64 // f_migrate, fraction of all agents attempting to move
	EnergyThreshold float64 // Source population energy must exceed this
	ResetEnergy     bool    // Arrivals restart at ResetValue
	ResetValue      float64
}

// FromConfig builds the migration engine for a run.
func FromConfig(cfg config.Config) Engine {
	return Engine{
		Rate:            cfg.FMigrate,
		EnergyThreshold: cfg.MigrationEnergyThreshold,
		ResetEnergy:     cfg.MigrationResetEnergy,
		ResetValue:      cfg.ChildEnergy(),
	}
}

// Move records one migration.
type Move struct {
	Agent agents.AgentID
	From  agents.PopulationID
	To    agents.PopulationID
}

// Attempts returns the number of migration attempts for a hierarchy holding
// total agents.
func (e Engine) Attempts(total int) int {
	if e.Rate <= 0 || total <= 0 {
		return 0
	}
	n := int(float64(total) * e.Rate)
	if n < 1 {
		n = 1
	}
	return n
}

// Migrate performs one pass and returns the moves made. Nothing moves when
// fewer than two populations are occupied at the start of the pass. Each
// attempt picks a random occupied source, a random other destination and a
// random member; the move happens only if the source's total energy exceeds
// EnergyThreshold.
func (e Engine) Migrate(reg *population.Registry, rng Picker) ([]Move, error) {
	attempts := e.Attempts(reg.TotalAgents())
	if attempts == 0 || reg.Len() < 2 || len(reg.NonEmpty()) < 2 {
		return nil, nil
	}

	var moves []Move
	for i := 0; i < attempts; i++ {
		occupied := reg.NonEmpty()
		if len(occupied) == 0 {
			break
		}
		src := occupied[rng.Intn(len(occupied))]

		// Destination is any population other than the source.
		d := rng.Intn(reg.Len() - 1)
		if d >= int(src.ID) {
			d++
		}
		dst := agents.PopulationID(d)

		if src.TotalEnergy() <= e.EnergyThreshold {
			continue
		}
		migrant := src.At(rng.Intn(src.Size()))

		a, err := reg.Move(migrant.ID, dst)
		if err != nil {
			return moves, fmt.Errorf("migrate agent %d: %w", migrant.ID, err)
		}
		if e.ResetEnergy {
			a.Energy = e.ResetValue
		}
		moves = append(moves, Move{Agent: a.ID, From: src.ID, To: dst})
	}
	return moves, nil
}

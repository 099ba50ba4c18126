// Simulation owns one run: the population hierarchy, its random stream and
// the subsystems that advance it one cycle at a time.
package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/nrm/internal/agents"
	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/energy"
	"github.com/talgya/nrm/internal/entropy"
	"github.com/talgya/nrm/internal/migration"
	"github.com/talgya/nrm/internal/phi"
	"github.com/talgya/nrm/internal/population"
	"github.com/talgya/nrm/internal/rates"
	"github.com/talgya/nrm/internal/regime"
	"github.com/talgya/nrm/internal/resonance"
)

// Simulation holds the complete state of one run. It is not safe for
// concurrent use; independent runs each build their own.
type Simulation struct {
	RunID uuid.UUID

	// Classifiers label the trajectory when a run finishes.
	Classifiers []regime.Classifier

	cfg      config.Config
	rng      *entropy.Source
	energy   *energy.Memo
	registry *population.Registry
	spawner  *agents.Spawner

	rates      *rates.Engine
	migration  migration.Engine
	detector   resonance.Detector
	decomposer resonance.Decomposer

	amplitude  []float64 // Per population, from the previous resonance pass
	cycle      int
	trajectory []Snapshot
	totals     Totals
}

// NewSimulation validates cfg, seeds the populations and returns a run ready
// to step. A nil source means constant mid-range capacity.
func NewSimulation(cfg config.Config, src energy.Source) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	re, err := rates.New(rates.ParamsFrom(cfg))
	if err != nil {
		return nil, err
	}
	if src == nil {
		src = energy.Constant(energy.MaxCapacity / 2)
	}

	rng := entropy.New(cfg.Seed)
	cfg.Seed = rng.Seed()

	s := &Simulation{
		RunID:       uuid.New(),
		Classifiers: regime.FromConfig(config.DefaultExperiment().Classifier),
		cfg:         cfg,
		rng:         rng,
		energy:      energy.NewMemo(src),
		registry:    population.NewRegistry(cfg.NPopulations),
		spawner:     agents.NewSpawner(cfg.Seed, cfg.ResonanceEnabled),
		rates:       re,
		migration:   migration.FromConfig(cfg),
		detector:    resonance.Detector{Threshold: cfg.ResonanceThreshold},
		amplitude:   make([]float64, cfg.NPopulations),
	}
	if cfg.BurstsEnabled() {
		s.decomposer = resonance.Decomposer{
			Threshold: cfg.BurstThreshold,
			Mode:      cfg.BurstMode,
			Retention: cfg.BurstRetention,
		}
	}
	for i := range s.amplitude {
		s.amplitude[i] = 1
	}

	for _, p := range s.registry.Populations() {
		seeded, err := s.spawner.SpawnPopulation(cfg.NInitial, p.ID, cfg.EnergyInitial)
		if err != nil {
			return nil, fmt.Errorf("seed population %d: %w", p.ID, err)
		}
		for _, a := range seeded {
			if err := s.registry.Add(a); err != nil {
				return nil, fmt.Errorf("seed population %d: %w", p.ID, err)
			}
		}
	}
	return s, nil
}

// Config returns the run's parameters with the resolved seed.
func (s *Simulation) Config() config.Config { return s.cfg }

// Seed returns the seed the run's random stream was built from.
func (s *Simulation) Seed() int64 { return s.cfg.Seed }

// Cycle returns the number of completed cycles. A cycle that failed is not
// counted.
func (s *Simulation) Cycle() int { return len(s.trajectory) }

// Registry exposes the population hierarchy for inspection.
func (s *Simulation) Registry() *population.Registry { return s.registry }

// Trajectory returns the snapshots recorded so far.
func (s *Simulation) Trajectory() []Snapshot { return s.trajectory }

// Totals returns the event counts accumulated so far.
func (s *Simulation) Totals() Totals { return s.totals }

// Done reports whether the run has reached its cycle limit or gone extinct.
func (s *Simulation) Done() bool {
	return s.cycle >= s.cfg.Cycles || s.registry.Extinct()
}

// Step advances the run by one cycle: sample energy, recharge and decay,
// births then deaths, migration, resonance and bursts, then the snapshot.
func (s *Simulation) Step() (Snapshot, error) {
	s.cycle++
	capacity := s.energy.Sample(s.cycle)
	snap := Snapshot{Cycle: s.cycle, Capacity: capacity}

	depleted, err := s.recharge(capacity)
	if err != nil {
		return snap, s.fail(err)
	}
	snap.Deaths += depleted

	var reading map[string]float64
	if s.cfg.ResonanceEnabled {
		reading = s.reading(capacity)
	}

	// Rates see the post-recharge state of every population before any
	// events are applied.
	pops := s.registry.Populations()
	events := make([]rates.Events, len(pops))
	var pooled rates.Rates
	var ampSum float64
	occupied := 0
	for i, p := range pops {
		n := p.Size()
		if n == 0 {
			continue
		}
		r := s.rates.Rates(n, p.TotalEnergy(), s.amplitude[p.ID])
		events[i] = s.rates.Draw(s.rng, r, n)
		pooled.Birth += r.Birth * float64(n)
		pooled.Death += r.Death * float64(n)
		ampSum += s.amplitude[p.ID]
		occupied++
	}
	if occupied > 0 {
		snap.Resonance = ampSum / float64(occupied)
	}
	snap.Balance = phi.HealthRatio(pooled)
	snap.Drift = phi.NullPoint(pooled)

	for i, p := range pops {
		before := p.Size()
		born, exhausted, err := s.births(p, events[i].Births, reading)
		if err != nil {
			return snap, s.fail(err)
		}
		died, err := s.deaths(p, events[i].Deaths)
		if err != nil {
			return snap, s.fail(err)
		}
		applied := rates.Events{Births: born, Deaths: exhausted + died}
		if want := rates.Apply(before, applied); p.Size() != want {
			return snap, s.fail(fmt.Errorf("population %d holds %d agents, events give %d", p.ID, p.Size(), want))
		}
		snap.Births += born
		snap.Deaths += applied.Deaths
	}

	moves, err := s.migration.Migrate(s.registry, s.rng)
	if err != nil {
		return snap, s.fail(err)
	}
	snap.Migrations = len(moves)

	if s.cfg.ResonanceEnabled {
		bursts, deaths, clusters, err := s.resonate(reading)
		if err != nil {
			return snap, s.fail(err)
		}
		snap.Bursts = bursts
		snap.Deaths += deaths
		snap.Clusters = clusters
		snap.Coherence = s.coherence()
	}

	if s.cfg.CheckInvariants {
		if err := s.registry.Verify(); err != nil {
			return snap, &StateInvariantError{Cycle: s.cycle, Err: err}
		}
	}

	snap.PopulationSizes = s.registry.Sizes()
	snap.TotalEnergy = s.registry.TotalEnergy()
	s.trajectory = append(s.trajectory, snap)
	s.totals.add(snap)
	return snap, nil
}

// resonate detects clusters, bursts those over threshold and sets the
// amplitudes the next cycle's births will use.
func (s *Simulation) resonate(reading map[string]float64) (bursts, deaths, clusters int, err error) {
	found := s.detector.DetectAll(s.registry)
	out, err := s.decomposer.Decompose(s.registry, found, func(a *agents.Agent) error {
		return s.spawner.Rephase(a, reading)
	})
	if err != nil {
		return 0, 0, 0, err
	}
	for _, p := range s.registry.Populations() {
		s.amplitude[p.ID] = resonance.Amplitude(p, out.Survivors)
	}
	return out.Bursts, out.Deaths, len(out.Survivors), nil
}

// coherence is the order parameter of every phased agent in the hierarchy.
func (s *Simulation) coherence() float64 {
	var phases []phi.Vector
	for _, p := range s.registry.Populations() {
		for _, a := range p.Agents() {
			if a.HasPhase() {
				phases = append(phases, *a.Phase)
			}
		}
	}
	return phi.OrderParameter(phases)
}

// reading is the PhaseBridge input for phases drawn this cycle.
func (s *Simulation) reading(capacity float64) map[string]float64 {
	m := map[string]float64{
		"capacity": capacity,
		"cycle":    float64(s.cycle),
	}
	for k, v := range s.energy.Metrics() {
		m[k] = v
	}
	return m
}

// fail wraps an internal error that leaves the hierarchy inconsistent.
func (s *Simulation) fail(err error) error {
	return &StateInvariantError{Cycle: s.cycle, Err: err}
}

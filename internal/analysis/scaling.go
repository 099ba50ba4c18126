// Package analysis runs parameter sweeps over independent seeds and derives
// the hierarchical scaling coefficient α from them.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/energy"
	"github.com/talgya/nrm/internal/engine"
	"github.com/talgya/nrm/internal/regime"
)

// ErrNoCritical is returned when no swept frequency reaches the quorum.
var ErrNoCritical = errors.New("no frequency reached the viability quorum")

// Sweep runs every (f_intra, seed) pair of a base configuration.
type Sweep struct {
	Base        config.Config
	Energy      config.EnergyConfig
	Classifier  regime.Classifier // Must produce regime.BasinA for viable runs
	Frequencies []float64
	Seeds       []int64
	Workers     int // Concurrent runs; 0 means GOMAXPROCS
}

// Point is the outcome of one swept frequency.
type Point struct {
	FIntra float64 `json:"f_intra"`
	Runs   int     `json:"runs"`
	Viable int     `json:"viable"` // Runs labelled Basin A
}

// Share returns the fraction of runs that were viable.
func (p Point) Share() float64 {
	if p.Runs == 0 {
		return 0
	}
	return float64(p.Viable) / float64(p.Runs)
}

type job struct {
	point int
	freq  float64
	seed  int64
}

// Run executes the sweep. Each run owns its simulation and random stream, so
// runs proceed in parallel; points are returned in ascending frequency.
func (s Sweep) Run(ctx context.Context) ([]Point, error) {
	if len(s.Frequencies) == 0 || len(s.Seeds) == 0 {
		return nil, errors.New("sweep needs at least one frequency and one seed")
	}
	if s.Classifier == nil {
		return nil, errors.New("sweep needs a classifier")
	}

	freqs := append([]float64(nil), s.Frequencies...)
	sort.Float64s(freqs)
	points := make([]Point, len(freqs))
	for i, f := range freqs {
		points[i].FIntra = f
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	jobs := make(chan job)
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				viable, err := s.runOne(ctx, j.freq, j.seed)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
				} else {
					points[j.point].Runs++
					if viable {
						points[j.point].Viable++
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i, f := range freqs {
		for _, seed := range s.Seeds {
			select {
			case jobs <- job{point: i, freq: f, seed: seed}:
			case <-ctx.Done():
				break feed
			}
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return points, firstErr
	}
	if err := ctx.Err(); err != nil {
		return points, err
	}
	for _, p := range points {
		slog.Debug("sweep point", "f_intra", p.FIntra, "viable", p.Viable, "runs", p.Runs)
	}
	return points, nil
}

func (s Sweep) runOne(ctx context.Context, freq float64, seed int64) (bool, error) {
	cfg := s.Base
	cfg.FIntra = freq
	cfg.Seed = seed

	src, err := energy.FromConfig(s.Energy, seed)
	if err != nil {
		return false, err
	}
	sim, err := engine.NewSimulation(cfg, src)
	if err != nil {
		return false, fmt.Errorf("f_intra=%g seed=%d: %w", freq, seed, err)
	}
	sim.Classifiers = []regime.Classifier{s.Classifier}
	res, err := sim.Run(ctx)
	if err != nil {
		return false, fmt.Errorf("f_intra=%g seed=%d: %w", freq, seed, err)
	}
	return res.Label(s.Classifier.Name()) == regime.BasinA, nil
}

// CriticalFrequency returns the lowest frequency whose viable share reaches
// quorum. Points must be in ascending frequency.
func CriticalFrequency(points []Point, quorum float64) (float64, error) {
	for _, p := range points {
		if p.Runs > 0 && p.Share() >= quorum {
			return p.FIntra, nil
		}
	}
	return 0, ErrNoCritical
}

// Alpha is the hierarchical scaling coefficient: the critical spawn
// frequency of a multi-population hierarchy over that of a single
// population.
func Alpha(multi, single float64) (float64, error) {
	if !(single > 0) {
		return 0, &config.ConfigurationError{Param: "single_critical", Value: single, Reason: "must be positive"}
	}
	return multi / single, nil
}

// Scaling compares the critical frequency of one population with that of a
// hierarchy of n populations under the same sweep.
type Scaling struct {
	Populations    int     `json:"populations"`
	Quorum         float64 `json:"quorum"`
	Single         []Point `json:"single"`
	Multi          []Point `json:"multi"`
	SingleCritical float64 `json:"single_critical"`
	MultiCritical  float64 `json:"multi_critical"`
	Alpha          float64 `json:"alpha"`
}

// MeasureScaling runs the sweep for a single population and for n
// populations, then derives α.
func MeasureScaling(ctx context.Context, sweep Sweep, n int, quorum float64) (*Scaling, error) {
	if n < 2 {
		return nil, &config.ConfigurationError{Param: "populations", Value: n, Reason: "must be at least 2"}
	}
	out := &Scaling{Populations: n, Quorum: quorum}

	single := sweep
	single.Base.NPopulations = 1
	single.Base.FMigrate = 0
	var err error
	if out.Single, err = single.Run(ctx); err != nil {
		return nil, fmt.Errorf("single-population sweep: %w", err)
	}

	multi := sweep
	multi.Base.NPopulations = n
	if out.Multi, err = multi.Run(ctx); err != nil {
		return nil, fmt.Errorf("%d-population sweep: %w", n, err)
	}

	if out.SingleCritical, err = CriticalFrequency(out.Single, quorum); err != nil {
		return out, fmt.Errorf("single population: %w", err)
	}
	if out.MultiCritical, err = CriticalFrequency(out.Multi, quorum); err != nil {
		return out, fmt.Errorf("%d populations: %w", n, err)
	}
	if out.Alpha, err = Alpha(out.MultiCritical, out.SingleCritical); err != nil {
		return out, err
	}
	slog.Info("hierarchical scaling",
		"populations", n,
		"single_critical", out.SingleCritical,
		"multi_critical", out.MultiCritical,
		"alpha", out.Alpha,
	)
	return out, nil
}

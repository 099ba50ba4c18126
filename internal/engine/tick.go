// Package engine provides the cycle-based simulation loop and the driver
// that paces it.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// pausePoll is how often a paused engine checks whether to resume.
const pausePoll = 100 * time.Millisecond

// Engine drives a Simulation forward one cycle at a time.
type Engine struct {
	Sim         *Simulation
	Speed       float64       // Multiplier: 1.0 = one cycle per Interval, 0 = paused
	Interval    time.Duration // Base cycle interval; 0 runs unpaced
	ReportEvery int           // Cycles between OnReport calls; 0 disables

	// Callbacks, populated during setup.
	OnCycle  func(Snapshot) // Every completed cycle
	OnReport func(Snapshot) // Every ReportEvery cycles

	running atomic.Bool
	stopped atomic.Bool
}

// NewEngine creates a driver with one cycle per second.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:      sim,
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Run steps the simulation until its cycle limit, extinction, Stop or
// context cancellation, and returns the result. Cancellation and Stop both
// end the run with StopCancelled; only cancellation returns an error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.running.Store(true)
	defer e.running.Store(false)

	started := time.Now()
	sim := e.Sim
	slog.Info("simulation started",
		"run", sim.RunID,
		"seed", sim.Seed(),
		"populations", sim.cfg.NPopulations,
		"agents", sim.registry.TotalAgents(),
		"cycles", sim.cfg.Cycles,
	)

	for !sim.Done() {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation cancelled", "run", sim.RunID, "cycle", sim.Cycle())
			return sim.result(StopCancelled, started), err
		}
		if e.stopped.Load() {
			slog.Info("simulation stopped", "run", sim.RunID, "cycle", sim.Cycle())
			return sim.result(StopCancelled, started), nil
		}
		if e.Interval > 0 && e.Speed <= 0 {
			_ = sleep(ctx, pausePoll)
			continue
		}

		start := time.Now()
		snap, err := sim.Step()
		if err != nil {
			slog.Error("simulation failed", "run", sim.RunID, "cycle", sim.Cycle(), "error", err)
			return sim.result(StopFailed, started), err
		}
		if e.OnCycle != nil {
			e.OnCycle(snap)
		}
		if e.ReportEvery > 0 && snap.Cycle%e.ReportEvery == 0 && e.OnReport != nil {
			e.OnReport(snap)
		}

		if e.Interval > 0 {
			target := time.Duration(float64(e.Interval) / e.Speed)
			if elapsed := time.Since(start); elapsed < target {
				_ = sleep(ctx, target-elapsed)
			}
		}
	}

	stop := StopCompleted
	if sim.registry.Extinct() {
		stop = StopExtinction
		slog.Info("population extinct", "run", sim.RunID, "cycle", sim.Cycle())
	}
	res := sim.result(stop, started)
	slog.Info("simulation finished",
		"run", sim.RunID,
		"stop", stop,
		"cycles", res.Cycles,
		"alive", res.Final().Total(),
		"elapsed", res.Finished.Sub(started).Round(time.Millisecond),
	)
	return res, nil
}

// Stop asks a running engine to halt after the current cycle.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/regime"
)

// StopReason says why a run ended.
type StopReason string

const (
	StopCompleted  StopReason = "completed"  // Cycle limit reached
	StopExtinction StopReason = "extinction" // Every population empty; a normal outcome
	StopCancelled  StopReason = "cancelled"  // Context cancelled or engine stopped
	StopFailed     StopReason = "failed"     // A step returned an error
)

// StateInvariantError reports a broken ownership or energy invariant. It
// always indicates a bug, never a modelling outcome.
type StateInvariantError struct {
	Cycle int
	Err   error
}

func (e *StateInvariantError) Error() string {
	return fmt.Sprintf("state invariant violated at cycle %d: %v", e.Cycle, e.Err)
}

func (e *StateInvariantError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one run.
type Result struct {
	RunID      uuid.UUID                        `json:"run_id"`
	Config     config.Config                    `json:"config"` // Seed is the resolved seed
	Stop       StopReason                       `json:"stop"`
	Cycles     int                              `json:"cycles"` // Completed cycles
	Trajectory []Snapshot                       `json:"trajectory"`
	Totals     Totals                           `json:"totals"`
	Labels     map[string]regime.Classification `json:"labels"`
	Started    time.Time                        `json:"started"`
	Finished   time.Time                        `json:"finished"`
}

// Final returns the last snapshot, or a zero snapshot if no cycle ran.
func (r *Result) Final() Snapshot {
	if len(r.Trajectory) == 0 {
		return Snapshot{}
	}
	return r.Trajectory[len(r.Trajectory)-1]
}

// Series returns the total population per cycle. An extinct run is padded
// with zeros to its configured length so labels compare across runs.
func (r *Result) Series() []float64 {
	pad := 0
	if r.Stop == StopExtinction {
		pad = r.Config.Cycles
	}
	return Series(r.Trajectory, pad)
}

// Label returns the label a strategy assigned, or "".
func (r *Result) Label(strategy string) string {
	return r.Labels[strategy].Label
}

// Run steps the simulation to completion without pacing. On cancellation
// the partial result is returned together with the context's error.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	return s.Driver().Run(ctx)
}

// Driver returns an unpaced engine that logs about ten progress reports
// over the run. Callers may set pacing and OnCycle before running it.
func (s *Simulation) Driver() *Engine {
	eng := NewEngine(s)
	eng.Interval = 0
	eng.ReportEvery = reportInterval(s.cfg.Cycles)
	eng.OnReport = s.report
	return eng
}

// result assembles the outcome of the run so far.
func (s *Simulation) result(stop StopReason, started time.Time) *Result {
	res := &Result{
		RunID:      s.RunID,
		Config:     s.cfg,
		Stop:       stop,
		Cycles:     len(s.trajectory),
		Trajectory: s.trajectory,
		Totals:     s.totals,
		Started:    started,
		Finished:   time.Now(),
	}
	res.Labels = regime.ClassifyAll(s.Classifiers, res.Series())
	return res
}

// report logs a progress line for a completed cycle.
func (s *Simulation) report(snap Snapshot) {
	slog.Info("cycle report",
		"run", s.RunID,
		"cycle", snap.Cycle,
		"alive", snap.Total(),
		"sizes", snap.PopulationSizes,
		"energy", fmt.Sprintf("%.1f", snap.TotalEnergy),
		"births", s.totals.Births,
		"deaths", s.totals.Deaths,
		"migrations", s.totals.Migrations,
		"bursts", s.totals.Bursts,
		"resonance", fmt.Sprintf("%.3f", snap.Resonance),
		"balance", fmt.Sprintf("%.3f", snap.Balance),
		"drift", fmt.Sprintf("%.3f", snap.Drift),
		"coherence", fmt.Sprintf("%.3f", snap.Coherence),
	)
}

// reportInterval spaces progress lines to roughly ten per run.
func reportInterval(cycles int) int {
	if cycles < 10 {
		return 0
	}
	return cycles / 10
}

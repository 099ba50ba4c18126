package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/energy"
	"github.com/talgya/nrm/internal/engine"
	"github.com/talgya/nrm/internal/entropy"
	"github.com/talgya/nrm/internal/logging"
	"github.com/talgya/nrm/internal/persistence"
	"github.com/talgya/nrm/internal/regime"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment once per seed and archive the results",
		Example: `  nrmsim run
  nrmsim run --config experiments/hierarchy.yaml
  nrmsim run --seed 7 --cycles 500 --populations 3 --trace out/trace.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := loadExperiment(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, exp); err != nil {
				return err
			}

			db, err := openArchive(cmd)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			tracePath, _ := cmd.Flags().GetString("trace")
			var trace *logging.CycleTrace
			if tracePath != "" {
				if trace, err = logging.OpenCycleTrace(tracePath); err != nil {
					return err
				}
				defer trace.Close()
			}
			interval, _ := cmd.Flags().GetDuration("interval")

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var results []*engine.Result
			for _, seed := range exp.RunSeeds() {
				res, err := runSeed(ctx, exp, seed, interval, trace)
				if res != nil {
					results = append(results, res)
					if db != nil {
						if err := archive(db, exp.Name, res); err != nil {
							return err
						}
					}
				}
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, summaries(results))
			}
			for _, res := range results {
				printSummary(out, res)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Experiment YAML file")
	cmd.Flags().Int64("seed", 0, "Run one replicate with this seed instead of the experiment's (0 draws a random seed)")
	cmd.Flags().Int("cycles", 0, "Override the cycle count")
	cmd.Flags().Int("populations", 0, "Override the number of populations")
	cmd.Flags().Float64("f-intra", -1, "Override the spawn frequency")
	cmd.Flags().Float64("f-migrate", -1, "Override the migration frequency")
	cmd.Flags().Bool("resonance", false, "Enable resonance clustering")
	cmd.Flags().Bool("check-invariants", false, "Verify ownership and energy every cycle")
	cmd.Flags().String("energy", "", "Energy source: constant, noise, system or series")
	cmd.Flags().String("trace", "", "Append every cycle snapshot to this JSONL file")
	cmd.Flags().Duration("interval", 0, "Pace cycles at this interval (0 runs unpaced)")
	return cmd
}

// applyRunFlags overrides experiment values with the flags the user set.
func applyRunFlags(cmd *cobra.Command, exp *config.Experiment) error {
	f := cmd.Flags()
	sim := &exp.Simulation
	if f.Changed("seed") {
		seed, _ := f.GetInt64("seed")
		sim.Seed = seed
		exp.Seeds = nil
	}
	if f.Changed("cycles") {
		sim.Cycles, _ = f.GetInt("cycles")
	}
	if f.Changed("populations") {
		sim.NPopulations, _ = f.GetInt("populations")
	}
	if f.Changed("f-intra") {
		sim.FIntra, _ = f.GetFloat64("f-intra")
	}
	if f.Changed("f-migrate") {
		sim.FMigrate, _ = f.GetFloat64("f-migrate")
	}
	if f.Changed("resonance") {
		sim.ResonanceEnabled, _ = f.GetBool("resonance")
	}
	if f.Changed("check-invariants") {
		sim.CheckInvariants, _ = f.GetBool("check-invariants")
	}
	if f.Changed("energy") {
		exp.Energy.Kind, _ = f.GetString("energy")
	}
	return exp.Validate()
}

// runSeed executes one replicate. A zero seed is resolved up front so the
// energy source and the simulation share it.
func runSeed(ctx context.Context, exp *config.Experiment, seed int64, interval time.Duration, trace *logging.CycleTrace) (*engine.Result, error) {
	if seed == 0 {
		seed = entropy.CryptoSeed()
		slog.Info("drew fresh seed", "seed", seed)
	}
	cfg := exp.Simulation
	cfg.Seed = seed

	src, err := energy.FromConfig(exp.Energy, seed)
	if err != nil {
		return nil, err
	}
	sim, err := engine.NewSimulation(cfg, src)
	if err != nil {
		return nil, err
	}
	sim.Classifiers = regime.FromConfig(exp.Classifier)

	eng := sim.Driver()
	eng.Interval = interval
	if trace != nil {
		eng.OnCycle = func(s engine.Snapshot) {
			trace.Write(struct {
				RunID string `json:"run_id"`
				engine.Snapshot
			}{sim.RunID.String(), s})
		}
	}
	return eng.Run(ctx)
}

func archive(db *persistence.DB, name string, res *engine.Result) error {
	if err := db.SaveRun(name, res); err != nil {
		return fmt.Errorf("archive run %s: %w", res.RunID, err)
	}
	return db.SaveMeta("last_run", res.RunID.String())
}

type runSummary struct {
	RunID      string                           `json:"run_id"`
	Seed       int64                            `json:"seed"`
	Stop       engine.StopReason                `json:"stop"`
	Cycles     int                              `json:"cycles"`
	Final      []int                            `json:"final_sizes"`
	Totals     engine.Totals                    `json:"totals"`
	Labels     map[string]regime.Classification `json:"labels"`
	ElapsedSec float64                          `json:"elapsed_sec"`
}

func summaries(results []*engine.Result) []runSummary {
	out := make([]runSummary, 0, len(results))
	for _, r := range results {
		out = append(out, runSummary{
			RunID:      r.RunID.String(),
			Seed:       r.Config.Seed,
			Stop:       r.Stop,
			Cycles:     r.Cycles,
			Final:      r.Final().PopulationSizes,
			Totals:     r.Totals,
			Labels:     r.Labels,
			ElapsedSec: r.Finished.Sub(r.Started).Seconds(),
		})
	}
	return out
}

func printSummary(w io.Writer, r *engine.Result) {
	final := r.Final()
	fmt.Fprintf(w, "\nRun %s (seed %d): %s after %s cycles\n",
		r.RunID, r.Config.Seed, r.Stop, humanize.Comma(int64(r.Cycles)))
	fmt.Fprintf(w, "  population  %s across %d populations %v\n",
		humanize.Comma(int64(final.Total())), r.Config.NPopulations, final.PopulationSizes)
	fmt.Fprintf(w, "  births      %s\n", humanize.Comma(int64(r.Totals.Births)))
	fmt.Fprintf(w, "  deaths      %s\n", humanize.Comma(int64(r.Totals.Deaths)))
	fmt.Fprintf(w, "  migrations  %s\n", humanize.Comma(int64(r.Totals.Migrations)))
	if r.Config.ResonanceEnabled {
		fmt.Fprintf(w, "  bursts      %s\n", humanize.Comma(int64(r.Totals.Bursts)))
	}
	printLabels(w, r.Labels)
}

func printLabels(w io.Writer, labels map[string]regime.Classification) {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := labels[name]
		fmt.Fprintf(w, "  %-10s  %-13s mean=%s cv=%s window=%d\n",
			name, c.Label, humanize.FtoaWithDigits(c.Mean, 3), humanize.FtoaWithDigits(c.CV, 3), c.Window)
	}
}

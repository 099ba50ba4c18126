package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/nrm/internal/analysis"
	"github.com/talgya/nrm/internal/persistence"
	"github.com/talgya/nrm/internal/regime"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [run-id]",
		Short: "Re-derive labels for an archived run",
		Long: `Reloads a run's trajectory from the archive and applies the classifiers
of the experiment file (or the defaults). With no run id the most recent run
is used. The new labels replace the stored ones.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := requireArchive(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runID, err := resolveRunID(db, args)
			if err != nil {
				return err
			}
			exp, err := loadExperiment(cmd)
			if err != nil {
				return err
			}

			classifiers := regime.FromConfig(exp.Classifier)
			if name, _ := cmd.Flags().GetString("strategy"); name != "" {
				c, err := regime.Lookup(name, exp.Classifier)
				if err != nil {
					return err
				}
				classifiers = []regime.Classifier{c}
			}

			res, err := db.LoadResult(runID)
			if err != nil {
				return err
			}
			labels := regime.ClassifyAll(classifiers, res.Series())
			for _, c := range labels {
				if err := db.SaveClassification(runID, c); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, map[string]any{"run_id": runID, "labels": labels})
			}
			fmt.Fprintf(out, "Run %s (%s, %s cycles)\n", runID, res.Stop, humanize.Comma(int64(res.Cycles)))
			printLabels(out, labels)
			return nil
		},
	}
	cmd.Flags().String("config", "", "Experiment YAML file with classifier thresholds")
	cmd.Flags().String("strategy", "", "Apply only this classifier: basin or regime")
	return cmd
}

func resolveRunID(db *persistence.DB, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	id, err := db.GetMeta("last_run")
	if err != nil {
		return "", fmt.Errorf("no run id given and no previous run recorded")
	}
	return id, nil
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := requireArchive(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			name, _ := cmd.Flags().GetString("name")
			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := db.Runs(name, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No archived runs.")
				return nil
			}
			for _, r := range runs {
				labels, err := db.Classifications(r.ID)
				if err != nil {
					return err
				}
				when := r.StartedAt
				if t, err := time.Parse(time.RFC3339Nano, r.StartedAt); err == nil {
					when = humanize.Time(t)
				}
				fmt.Fprintf(out, "%s  %-12s seed=%-20s %-10s %7s cycles  final=%-6s %s / %s  (%s)\n",
					r.ID, r.Name, strconv.FormatInt(r.Seed, 10), r.Stop,
					humanize.Comma(int64(r.Cycles)), humanize.Comma(int64(r.FinalPopulation)),
					labels[regime.StrategyBasin].Label, labels[regime.StrategyRegime].Label, when)
			}
			return nil
		},
	}
	cmd.Flags().String("name", "", "Only runs of this experiment")
	cmd.Flags().Int("limit", 20, "Maximum runs to list")
	return cmd
}

func newScalingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scaling",
		Short: "Measure the hierarchical scaling coefficient α",
		Long: `Sweeps the spawn frequency over several seeds for a single population and
for a hierarchy of populations, finds the lowest frequency at which a quorum
of seeds stays viable (Basin A) in each, and reports their ratio α.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := loadExperiment(cmd)
			if err != nil {
				return err
			}
			freqs, _ := cmd.Flags().GetFloat64Slice("frequencies")
			nSeeds, _ := cmd.Flags().GetInt("seeds")
			pops, _ := cmd.Flags().GetInt("populations")
			quorum, _ := cmd.Flags().GetFloat64("quorum")
			workers, _ := cmd.Flags().GetInt("workers")
			cycles, _ := cmd.Flags().GetInt("cycles")

			base := exp.Simulation
			if cycles > 0 {
				base.Cycles = cycles
			}
			seeds := exp.Seeds
			if len(seeds) == 0 {
				for i := 0; i < nSeeds; i++ {
					seeds = append(seeds, base.Seed+int64(i))
				}
			}

			basin, err := regime.Lookup(regime.StrategyBasin, exp.Classifier)
			if err != nil {
				return err
			}
			sweep := analysis.Sweep{
				Base:        base,
				Energy:      exp.Energy,
				Classifier:  basin,
				Frequencies: freqs,
				Seeds:       seeds,
				Workers:     workers,
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			scaling, err := analysis.MeasureScaling(ctx, sweep, pops, quorum)
			if err != nil && scaling == nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				if werr := writeJSON(out, scaling); werr != nil {
					return werr
				}
				return err
			}
			fmt.Fprintf(out, "f_intra     1 population   %d populations\n", pops)
			for i := range scaling.Single {
				s, m := scaling.Single[i], scaling.Multi[i]
				fmt.Fprintf(out, "%-10s  %d/%d            %d/%d\n",
					humanize.FtoaWithDigits(s.FIntra, 4), s.Viable, s.Runs, m.Viable, m.Runs)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\ncritical frequency: single=%g multi=%g  α=%.3f\n",
				scaling.SingleCritical, scaling.MultiCritical, scaling.Alpha)
			return nil
		},
	}
	cmd.Flags().String("config", "", "Experiment YAML file")
	cmd.Flags().Float64Slice("frequencies", []float64{0.01, 0.015, 0.02, 0.025, 0.03, 0.04, 0.05, 0.075, 0.1}, "Spawn frequencies to sweep")
	cmd.Flags().Int("seeds", 5, "Seeds per frequency when the experiment lists none")
	cmd.Flags().Int("populations", 5, "Populations in the hierarchy")
	cmd.Flags().Float64("quorum", 0.5, "Share of seeds that must be viable")
	cmd.Flags().Int("workers", 0, "Concurrent runs (0 = GOMAXPROCS)")
	cmd.Flags().Int("cycles", 0, "Override the cycle count")
	return cmd
}

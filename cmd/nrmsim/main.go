// Command nrmsim runs nested resonance memory simulations, archives their
// trajectories and classifies the outcomes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/logging"
	"github.com/talgya/nrm/internal/persistence"
	"github.com/talgya/nrm/internal/phi"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nrmsim",
		Short: "Stochastic hierarchical agent simulation",
		Long: `nrmsim simulates energy-bearing agents that reproduce and die under
energy-gated, resonance-modulated stochastic rates, organised into
populations that exchange members through migration.

Runs are archived to SQLite and labelled with the basin and regime
classifiers so results can be re-derived from the archive alone.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			slog.SetDefault(logging.NewLogger(level, format, os.Stderr))
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("db", "data/nrm.db", "Run archive path (empty disables archiving)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", logging.FormatText, "Log format: text or json")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newClassifyCmd(),
		newRunsCmd(),
		newScalingCmd(),
		newPhaseCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				_ = writeJSON(out, map[string]any{"version": version, "phi": phi.Phi})
				return
			}
			fmt.Fprintf(out, "nrmsim version %s\n", version)
		},
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// loadExperiment reads the experiment file named by --config, or the
// defaults with environment overrides when none is given.
func loadExperiment(cmd *cobra.Command) (*config.Experiment, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadExperiment(path)
	}
	exp := config.DefaultExperiment()
	if err := exp.ApplyEnv(); err != nil {
		return nil, err
	}
	return exp, exp.Validate()
}

// openArchive opens the --db archive; a nil DB means archiving is off.
func openArchive(cmd *cobra.Command) (*persistence.DB, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("archive opened", "path", path)
	return db, nil
}

func requireArchive(cmd *cobra.Command) (*persistence.DB, error) {
	db, err := openArchive(cmd)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("this command needs an archive; pass --db")
	}
	return db, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

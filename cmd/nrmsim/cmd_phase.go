package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/nrm/internal/energy"
	"github.com/talgya/nrm/internal/phi"
)

func newPhaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase [key=value ...]",
		Short: "Map readings onto a phase vector",
		Long: `Folds named readings into a point of the three-oscillator phase space, the
same transform agents use for their phases. With --system the live host
readings are added. With --against the alignment between both vectors is
reported.`,
		Example: `  nrmsim phase capacity=120 cycle=4
  nrmsim phase --system
  nrmsim phase a=1 b=2 --against a=1,b=2.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics, err := parseMetrics(args)
			if err != nil {
				return err
			}
			if useSystem, _ := cmd.Flags().GetBool("system"); useSystem {
				sys := energy.NewSystem()
				metrics["capacity"] = sys.Sample(0)
				for k, v := range sys.Metrics() {
					metrics[k] = v
				}
			}
			if len(metrics) == 0 {
				return fmt.Errorf("no readings given; pass key=value pairs or --system")
			}

			vec, err := phi.RealityToPhase(metrics)
			if err != nil {
				return err
			}

			result := map[string]any{"metrics": metrics, "phase": vec}
			against, _ := cmd.Flags().GetStringSlice("against")
			var other phi.Vector
			if len(against) > 0 {
				om, err := parseMetrics(against)
				if err != nil {
					return err
				}
				if other, err = phi.RealityToPhase(om); err != nil {
					return err
				}
				result["against"] = other
				result["alignment"] = vec.Alignment(other)
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, result)
			}
			fmt.Fprintf(out, "phase      [%.4f %.4f %.4f]\n", vec[0], vec[1], vec[2])
			if len(against) > 0 {
				fmt.Fprintf(out, "against    [%.4f %.4f %.4f]\n", other[0], other[1], other[2])
				fmt.Fprintf(out, "alignment  %.4f\n", vec.Alignment(other))
			}
			return nil
		},
	}
	cmd.Flags().Bool("system", false, "Include live host readings")
	cmd.Flags().StringSlice("against", nil, "Second set of key=value readings to align with")
	return cmd
}

// parseMetrics turns key=value pairs into readings.
func parseMetrics(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("reading %q: want key=value", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", pair, err)
		}
		out[k] = f
	}
	return out, nil
}

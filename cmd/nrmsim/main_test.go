package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestParseMetrics(t *testing.T) {
	m, err := parseMetrics([]string{"capacity=120", " cycle = 4 "})
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"capacity": 120, "cycle": 4}, m)

	_, err = parseMetrics([]string{"capacity"})
	require.Error(t, err)
	_, err = parseMetrics([]string{"=1"})
	require.Error(t, err)
	_, err = parseMetrics([]string{"x=abc"})
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, version)
}

func TestPhaseCommand(t *testing.T) {
	out, err := execute(t, "phase", "a=1", "b=2", "--against", "a=1,b=2", "--json")
	require.NoError(t, err)

	var got struct {
		Phase     [3]float64 `json:"phase"`
		Against   [3]float64 `json:"against"`
		Alignment float64    `json:"alignment"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, got.Phase, got.Against)
	require.InDelta(t, 1.0, got.Alignment, 1e-12)

	_, err = execute(t, "phase")
	require.Error(t, err)
}

func TestRunClassifyAndList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--db", db, "--cycles", "50", "--seed", "3", "--json")
	require.NoError(t, err)
	var runs []struct {
		RunID  string `json:"run_id"`
		Seed   int64  `json:"seed"`
		Cycles int    `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, int64(3), runs[0].Seed)
	require.Equal(t, 50, runs[0].Cycles)

	out, err = execute(t, "classify", "--db", db, "--strategy", "regime", "--json")
	require.NoError(t, err)
	var classified struct {
		RunID  string                    `json:"run_id"`
		Labels map[string]map[string]any `json:"labels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &classified))
	require.Equal(t, runs[0].RunID, classified.RunID)
	require.Contains(t, classified.Labels, "regime")
	require.NotContains(t, classified.Labels, "basin")

	out, err = execute(t, "runs", "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, runs[0].RunID)
}

func TestArchiveCommandsNeedDB(t *testing.T) {
	_, err := execute(t, "runs", "--db", "")
	require.Error(t, err)
	_, err = execute(t, "classify", "--db", "")
	require.Error(t, err)
}

func TestRunRejectsBadOverride(t *testing.T) {
	_, err := execute(t, "run", "--db", "", "--f-intra", "2")
	require.Error(t, err)
}

func TestRunSeedFlagDescribesZero(t *testing.T) {
	flag := newRunCmd().Flags().Lookup("seed")
	require.NotNil(t, flag)
	require.Equal(t, "0", flag.DefValue)
	require.Contains(t, flag.Usage, "0 draws a random seed")
}

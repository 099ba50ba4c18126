package energy

import (
	"log/slog"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// System grounds capacity in the host's free CPU and memory:
// (100 - cpu%) + (100 - mem%), so an idle machine offers the full 200.
// It is the only non-deterministic source and is never used by tests that
// assert reproducibility.
type System struct {
	cpuPercent func() (float64, error)
	memPercent func() (float64, error)

	last    float64
	metrics map[string]float64
}

// NewSystem creates a source reading live host metrics.
func NewSystem() *System {
	return &System{
		cpuPercent: hostCPUPercent,
		memPercent: hostMemPercent,
		last:       MaxCapacity / 2,
	}
}

// Sample implements Source. A failed reading keeps the previous capacity.
func (s *System) Sample(cycle int) float64 {
	cpuPct, err := s.cpuPercent()
	if err != nil {
		slog.Debug("cpu sample failed, reusing last capacity", "cycle", cycle, "error", err)
		return s.last
	}
	memPct, err := s.memPercent()
	if err != nil {
		slog.Debug("memory sample failed, reusing last capacity", "cycle", cycle, "error", err)
		return s.last
	}

	s.metrics = map[string]float64{
		"cpu_percent":    cpuPct,
		"memory_percent": memPct,
	}
	s.last = Clamp((100 - cpuPct) + (100 - memPct))
	return s.last
}

// Metrics implements MetricsReporter with the readings behind the last sample.
func (s *System) Metrics() map[string]float64 {
	if s.metrics == nil {
		return nil
	}
	out := make(map[string]float64, len(s.metrics))
	for k, v := range s.metrics {
		out[k] = v
	}
	return out
}

func hostCPUPercent() (float64, error) {
	pct, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, nil
	}
	return pct[0], nil
}

func hostMemPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

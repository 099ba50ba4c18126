package engine

// Snapshot is the immutable record of one completed cycle.
type Snapshot struct {
	Cycle           int     `json:"cycle"`
	PopulationSizes []int   `json:"population_sizes"`
	TotalEnergy     float64 `json:"total_energy"`
	Births          int     `json:"births"`
	Deaths          int     `json:"deaths"` // Includes depletion and burst removals
	Migrations      int     `json:"migrations"`
	Bursts          int     `json:"bursts"`
	Clusters        int     `json:"clusters"`  // Clusters standing after decomposition
	Capacity        float64 `json:"capacity"`  // Energy source sample for the cycle
	Resonance       float64 `json:"resonance"` // Mean amplitude used for this cycle's births
	Balance         float64 `json:"balance"`   // Birth/death health ratio of the pooled rates
	Drift           float64 `json:"drift"`     // |λN - μN| of the pooled rates
	Coherence       float64 `json:"coherence"` // Phase order parameter after bursts; 0 without resonance
}

// Total returns the number of agents across all populations.
func (s Snapshot) Total() int {
	n := 0
	for _, size := range s.PopulationSizes {
		n += size
	}
	return n
}

// Totals accumulates event counts over a run.
type Totals struct {
	Births     int `json:"births"`
	Deaths     int `json:"deaths"`
	Migrations int `json:"migrations"`
	Bursts     int `json:"bursts"`
}

func (t *Totals) add(s Snapshot) {
	t.Births += s.Births
	t.Deaths += s.Deaths
	t.Migrations += s.Migrations
	t.Bursts += s.Bursts
}

// Series returns the total population of each snapshot. When padTo exceeds
// the number of snapshots the series is extended with zeros; extinction is
// absorbing, so the missing cycles are known to be empty.
func Series(trajectory []Snapshot, padTo int) []float64 {
	n := len(trajectory)
	if padTo > n {
		n = padTo
	}
	out := make([]float64, n)
	for i, s := range trajectory {
		out[i] = float64(s.Total())
	}
	return out
}

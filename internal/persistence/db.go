// Package persistence provides the SQLite archive of finished runs: run
// metadata, per-cycle trajectories and their classifications.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/nrm/internal/config"
	"github.com/talgya/nrm/internal/engine"
	"github.com/talgya/nrm/internal/regime"
)

// ErrRunNotFound is returned when no archived run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed width so stored times sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite connection for the run archive.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		seed INTEGER NOT NULL,
		stop TEXT NOT NULL,
		cycles INTEGER NOT NULL,
		populations INTEGER NOT NULL,
		final_population INTEGER NOT NULL,
		births INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		migrations INTEGER NOT NULL,
		bursts INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		sizes_json TEXT NOT NULL,
		total_energy REAL NOT NULL,
		births INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		migrations INTEGER NOT NULL,
		bursts INTEGER NOT NULL,
		clusters INTEGER NOT NULL,
		capacity REAL NOT NULL,
		resonance REAL NOT NULL,
		balance REAL NOT NULL,
		drift REAL NOT NULL,
		coherence REAL NOT NULL,
		PRIMARY KEY (run_id, cycle)
	);

	CREATE TABLE IF NOT EXISTS classifications (
		run_id TEXT NOT NULL,
		strategy TEXT NOT NULL,
		label TEXT NOT NULL,
		mean REAL NOT NULL,
		std REAL NOT NULL,
		cv REAL NOT NULL,
		min REAL NOT NULL,
		max REAL NOT NULL,
		samples INTEGER NOT NULL,
		PRIMARY KEY (run_id, strategy)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID              string `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	Seed            int64  `db:"seed" json:"seed"`
	Stop            string `db:"stop" json:"stop"`
	Cycles          int    `db:"cycles" json:"cycles"`
	Populations     int    `db:"populations" json:"populations"`
	FinalPopulation int    `db:"final_population" json:"final_population"`
	Births          int    `db:"births" json:"births"`
	Deaths          int    `db:"deaths" json:"deaths"`
	Migrations      int    `db:"migrations" json:"migrations"`
	Bursts          int    `db:"bursts" json:"bursts"`
	ConfigJSON      string `db:"config_json" json:"-"`
	StartedAt       string `db:"started_at" json:"started_at"`
	FinishedAt      string `db:"finished_at" json:"finished_at"`
}

// Config decodes the run's archived parameters.
func (r RunRecord) Config() (config.Config, error) {
	var cfg config.Config
	if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
		return cfg, fmt.Errorf("decode config of run %s: %w", r.ID, err)
	}
	return cfg, nil
}

type snapshotRow struct {
	RunID       string  `db:"run_id"`
	Cycle       int     `db:"cycle"`
	SizesJSON   string  `db:"sizes_json"`
	TotalEnergy float64 `db:"total_energy"`
	Births      int     `db:"births"`
	Deaths      int     `db:"deaths"`
	Migrations  int     `db:"migrations"`
	Bursts      int     `db:"bursts"`
	Clusters    int     `db:"clusters"`
	Capacity    float64 `db:"capacity"`
	Resonance   float64 `db:"resonance"`
	Balance     float64 `db:"balance"`
	Drift       float64 `db:"drift"`
	Coherence   float64 `db:"coherence"`
}

type classificationRow struct {
	RunID    string  `db:"run_id"`
	Strategy string  `db:"strategy"`
	Label    string  `db:"label"`
	Mean     float64 `db:"mean"`
	Std      float64 `db:"std"`
	CV       float64 `db:"cv"`
	Min      float64 `db:"min"`
	Max      float64 `db:"max"`
	Samples  int     `db:"samples"`
}

// SaveRun archives a finished run under the given experiment name: the run
// row, every snapshot and every classification, in one transaction.
func (db *DB) SaveRun(name string, res *engine.Result) error {
	cfgJSON, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	id := res.RunID.String()

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, name, seed, stop, cycles, populations, final_population,
		 births, deaths, migrations, bursts, config_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, res.Config.Seed, string(res.Stop), res.Cycles, res.Config.NPopulations,
		res.Final().Total(), res.Totals.Births, res.Totals.Deaths, res.Totals.Migrations,
		res.Totals.Bursts, string(cfgJSON),
		res.Started.UTC().Format(timeLayout), res.Finished.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO snapshots
		(run_id, cycle, sizes_json, total_energy, births, deaths, migrations,
		 bursts, clusters, capacity, resonance, balance, drift, coherence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range res.Trajectory {
		sizesJSON, err := json.Marshal(s.PopulationSizes)
		if err != nil {
			return fmt.Errorf("encode sizes of cycle %d: %w", s.Cycle, err)
		}
		_, err = stmt.Exec(
			id, s.Cycle, string(sizesJSON), s.TotalEnergy, s.Births, s.Deaths,
			s.Migrations, s.Bursts, s.Clusters, s.Capacity, s.Resonance, s.Balance,
			s.Drift, s.Coherence,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %d of run %s: %w", s.Cycle, id, err)
		}
	}

	for _, c := range res.Labels {
		if err := saveClassification(tx, id, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("run archived", "run", id, "name", name, "snapshots", len(res.Trajectory))
	return nil
}

// SaveClassification stores or replaces one strategy's label for a run.
func (db *DB) SaveClassification(runID string, c regime.Classification) error {
	return saveClassification(db.conn, runID, c)
}

func saveClassification(ex sqlx.Execer, runID string, c regime.Classification) error {
	_, err := ex.Exec(`INSERT OR REPLACE INTO classifications
		(run_id, strategy, label, mean, std, cv, min, max, samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, c.Strategy, c.Label, c.Mean, c.Std, c.CV, c.Min, c.Max, c.Window,
	)
	if err != nil {
		return fmt.Errorf("insert classification %s of run %s: %w", c.Strategy, runID, err)
	}
	return nil
}

// Classifications returns the stored labels of a run keyed by strategy.
func (db *DB) Classifications(runID string) (map[string]regime.Classification, error) {
	var rows []classificationRow
	err := db.conn.Select(&rows,
		"SELECT * FROM classifications WHERE run_id = ? ORDER BY strategy", runID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]regime.Classification, len(rows))
	for _, r := range rows {
		out[r.Strategy] = regime.Classification{
			Strategy: r.Strategy,
			Label:    r.Label,
			Mean:     r.Mean,
			Std:      r.Std,
			CV:       r.CV,
			Min:      r.Min,
			Max:      r.Max,
			Window:   r.Samples,
		}
	}
	return out, nil
}

// Run returns one archived run.
func (db *DB) Run(runID string) (*RunRecord, error) {
	var rec RunRecord
	err := db.conn.Get(&rec, "SELECT * FROM runs WHERE id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Runs returns the most recent archived runs, newest first. A non-empty
// name restricts the list to one experiment.
func (db *DB) Runs(name string, limit int) ([]RunRecord, error) {
	var runs []RunRecord
	var err error
	if name == "" {
		err = db.conn.Select(&runs,
			"SELECT * FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	} else {
		err = db.conn.Select(&runs,
			"SELECT * FROM runs WHERE name = ? ORDER BY started_at DESC LIMIT ?", name, limit)
	}
	return runs, err
}

// LoadTrajectory returns a run's snapshots in cycle order.
func (db *DB) LoadTrajectory(runID string) ([]engine.Snapshot, error) {
	var rows []snapshotRow
	err := db.conn.Select(&rows,
		"SELECT * FROM snapshots WHERE run_id = ? ORDER BY cycle", runID)
	if err != nil {
		return nil, err
	}

	out := make([]engine.Snapshot, 0, len(rows))
	for _, r := range rows {
		var sizes []int
		if err := json.Unmarshal([]byte(r.SizesJSON), &sizes); err != nil {
			return nil, fmt.Errorf("decode sizes of cycle %d: %w", r.Cycle, err)
		}
		out = append(out, engine.Snapshot{
			Cycle:           r.Cycle,
			PopulationSizes: sizes,
			TotalEnergy:     r.TotalEnergy,
			Births:          r.Births,
			Deaths:          r.Deaths,
			Migrations:      r.Migrations,
			Bursts:          r.Bursts,
			Clusters:        r.Clusters,
			Capacity:        r.Capacity,
			Resonance:       r.Resonance,
			Balance:         r.Balance,
			Drift:           r.Drift,
			Coherence:       r.Coherence,
		})
	}
	return out, nil
}

// LoadResult rebuilds a run's result from the archive alone.
func (db *DB) LoadResult(runID string) (*engine.Result, error) {
	rec, err := db.Run(runID)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", rec.ID, err)
	}
	cfg, err := rec.Config()
	if err != nil {
		return nil, err
	}
	traj, err := db.LoadTrajectory(runID)
	if err != nil {
		return nil, fmt.Errorf("load trajectory: %w", err)
	}
	labels, err := db.Classifications(runID)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}

	res := &engine.Result{
		RunID:      id,
		Config:     cfg,
		Stop:       engine.StopReason(rec.Stop),
		Cycles:     rec.Cycles,
		Trajectory: traj,
		Labels:     labels,
	}
	res.Started, _ = time.Parse(timeLayout, rec.StartedAt)
	res.Finished, _ = time.Parse(timeLayout, rec.FinishedAt)
	for _, s := range traj {
		res.Totals.Births += s.Births
		res.Totals.Deaths += s.Deaths
		res.Totals.Migrations += s.Migrations
		res.Totals.Bursts += s.Bursts
	}
	return res, nil
}

// SaveMeta stores a key-value pair in archive metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

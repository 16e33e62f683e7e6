// Package diagstore persists per-round filter snapshots of simulator and
// refinement runs in SQLite so convergence can be inspected afterwards.
package diagstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/particle.refine/internal/monitoring"
	"github.com/banshee-data/particle.refine/internal/particle"
	"github.com/banshee-data/particle.refine/internal/timeutil"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the diagnostics database.
type Store struct {
	*sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("diagnostics store ready at %s", path)
	return db, nil
}

// OpenDB opens the database without touching the schema. Every pooled
// connection gets foreign keys and a busy timeout.
func OpenDB(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Store{DB: db, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used to stamp new runs.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// RunInfo describes one simulator or refinement run.
type RunInfo struct {
	ID           string
	Mode         particle.Mode
	Symmetry     string
	Observations int
	Rounds       int
	Seed         uint64
	Notes        string
	Created      time.Time
}

// CreateRun inserts a run and returns its generated ID. A zero Created is
// set to now.
func (s *Store) CreateRun(info RunInfo) (string, error) {
	id := uuid.NewString()
	if info.Created.IsZero() {
		info.Created = s.clock.Now()
	}
	_, err := s.Exec(`
		INSERT INTO runs (run_id, mode, symmetry, observations, rounds, seed, notes, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, int(info.Mode), info.Symmetry, info.Observations, info.Rounds,
		int64(info.Seed), info.Notes, info.Created.Unix())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// Run loads a run by ID.
func (s *Store) Run(id string) (RunInfo, error) {
	var (
		info    RunInfo
		mode    int
		seed    int64
		created int64
	)
	err := s.QueryRow(`
		SELECT run_id, mode, symmetry, observations, rounds, seed, notes, created_unix
		FROM runs WHERE run_id = ?`, id).
		Scan(&info.ID, &mode, &info.Symmetry, &info.Observations, &info.Rounds, &seed, &info.Notes, &created)
	if err != nil {
		return RunInfo{}, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	info.Mode = particle.Mode(mode)
	info.Seed = uint64(seed)
	info.Created = time.Unix(created, 0)
	return info, nil
}

// Runs lists every run, newest first.
func (s *Store) Runs() ([]RunInfo, error) {
	rows, err := s.Query(`SELECT run_id FROM runs ORDER BY created_unix DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]RunInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.Run(id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, info)
	}
	return runs, nil
}

// RecordSnapshot stores the filter summary of one observation after one
// round. The principal rotation axes are not persisted.
func (s *Store) RecordSnapshot(runID string, observation, round int, snap particle.Snapshot) error {
	r1, r0 := snap.Rank1, snap.Rank1Prev
	rs, ts := snap.Spread.Rotation, snap.Spread.Translation
	_, err := s.Exec(`
		INSERT INTO snapshots (
			run_id, observation, round,
			n_class, n_rotation, n_translation, n_defocus,
			class, q0, q1, q2, q3, tx, ty, defocus,
			prev_class, prev_q0, prev_q1, prev_q2, prev_q3, prev_tx, prev_ty, prev_defocus,
			diff_class, diff_rotation, diff_translation, diff_defocus,
			k1, k2, k3, mean_q0, mean_q1, mean_q2, mean_q3,
			s0, s1, rho, s_defocus,
			pf_class, pf_rotation, pf_translation, pf_defocus,
			score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, observation, round,
		snap.Counts.C, snap.Counts.R, snap.Counts.T, snap.Counts.D,
		r1.Class, r1.Rotation.Real, r1.Rotation.Imag, r1.Rotation.Jmag, r1.Rotation.Kmag,
		r1.Translation.X, r1.Translation.Y, r1.Defocus,
		r0.Class, r0.Rotation.Real, r0.Rotation.Imag, r0.Rotation.Jmag, r0.Rotation.Kmag,
		r0.Translation.X, r0.Translation.Y, r0.Defocus,
		snap.Diff(particle.AxisClass), snap.Diff(particle.AxisRotation),
		snap.Diff(particle.AxisTranslation), snap.Diff(particle.AxisDefocus),
		rs.K1, rs.K2, rs.K3, rs.Mean.Real, rs.Mean.Imag, rs.Mean.Jmag, rs.Mean.Kmag,
		ts.S0, ts.S1, ts.Rho, snap.Spread.Defocus,
		snap.PeakFactors[particle.AxisClass], snap.PeakFactors[particle.AxisRotation],
		snap.PeakFactors[particle.AxisTranslation], snap.PeakFactors[particle.AxisDefocus],
		snap.Score,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s/%d/%d: %w", runID, observation, round, err)
	}
	return nil
}

// Record is one stored snapshot with its position in the run.
type Record struct {
	Observation int
	Round       int
	Snapshot    particle.Snapshot
}

// Snapshots returns the stored snapshots of one observation in round order.
func (s *Store) Snapshots(runID string, observation int) ([]Record, error) {
	var mode int
	if err := s.QueryRow(`SELECT mode FROM runs WHERE run_id = ?`, runID).Scan(&mode); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	rows, err := s.Query(`
		SELECT observation, round,
			n_class, n_rotation, n_translation, n_defocus,
			class, q0, q1, q2, q3, tx, ty, defocus,
			prev_class, prev_q0, prev_q1, prev_q2, prev_q3, prev_tx, prev_ty, prev_defocus,
			diff_class, diff_rotation, diff_translation, diff_defocus,
			k1, k2, k3, mean_q0, mean_q1, mean_q2, mean_q3,
			s0, s1, rho, s_defocus,
			pf_class, pf_rotation, pf_translation, pf_defocus,
			score
		FROM snapshots
		WHERE run_id = ? AND observation = ?
		ORDER BY round`, runID, observation)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec    Record
			sn     = &rec.Snapshot
			r1, r0 = &sn.Rank1, &sn.Rank1Prev
			rs, ts = &sn.Spread.Rotation, &sn.Spread.Translation
		)
		err := rows.Scan(&rec.Observation, &rec.Round,
			&sn.Counts.C, &sn.Counts.R, &sn.Counts.T, &sn.Counts.D,
			&r1.Class, &r1.Rotation.Real, &r1.Rotation.Imag, &r1.Rotation.Jmag, &r1.Rotation.Kmag,
			&r1.Translation.X, &r1.Translation.Y, &r1.Defocus,
			&r0.Class, &r0.Rotation.Real, &r0.Rotation.Imag, &r0.Rotation.Jmag, &r0.Rotation.Kmag,
			&r0.Translation.X, &r0.Translation.Y, &r0.Defocus,
			&sn.Diffs[particle.AxisClass], &sn.Diffs[particle.AxisRotation],
			&sn.Diffs[particle.AxisTranslation], &sn.Diffs[particle.AxisDefocus],
			&rs.K1, &rs.K2, &rs.K3, &rs.Mean.Real, &rs.Mean.Imag, &rs.Mean.Jmag, &rs.Mean.Kmag,
			&ts.S0, &ts.S1, &ts.Rho, &sn.Spread.Defocus,
			&sn.PeakFactors[particle.AxisClass], &sn.PeakFactors[particle.AxisRotation],
			&sn.PeakFactors[particle.AxisTranslation], &sn.PeakFactors[particle.AxisDefocus],
			&sn.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		sn.Mode = particle.Mode(mode)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RoundSummary aggregates one round over every observation of a run.
type RoundSummary struct {
	Round               int
	Observations        int
	ClassChangeRate     float64 // fraction of observations whose rank-1 class changed
	MeanRotationDiff    float64
	MeanTranslationDiff float64
	MeanDefocusDiff     float64
	MeanScore           float64
	MeanRotationPeak    float64
}

// RoundSummaries returns one summary per recorded round, in round order.
func (s *Store) RoundSummaries(runID string) ([]RoundSummary, error) {
	rows, err := s.Query(`
		SELECT round, COUNT(*),
			AVG(diff_class), AVG(diff_rotation), AVG(diff_translation), AVG(diff_defocus),
			AVG(score), AVG(pf_rotation)
		FROM snapshots
		WHERE run_id = ?
		GROUP BY round
		ORDER BY round`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query round summaries: %w", err)
	}
	defer rows.Close()

	var out []RoundSummary
	for rows.Next() {
		var r RoundSummary
		if err := rows.Scan(&r.Round, &r.Observations,
			&r.ClassChangeRate, &r.MeanRotationDiff, &r.MeanTranslationDiff, &r.MeanDefocusDiff,
			&r.MeanScore, &r.MeanRotationPeak); err != nil {
			return nil, fmt.Errorf("failed to scan round summary: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

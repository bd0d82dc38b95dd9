// Package store persists filter runs, their trials and their step diagnostics in SQLite.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ChristopherRabotin/goupf"
)

// Store is a SQLite backed result store.
type Store struct {
	db     *sql.DB
	logger golog.Logger
}

// Run describes a recorded run.
type Run struct {
	ID            uuid.UUID
	Label         string
	Created       time.Time
	Particles     int
	PointsPerStep int
	WindowWidth   int
	Selection     goupf.SelectionPolicy
	Seed          uint64
}

// TrialRecord is a trial as read back from the store.
type TrialRecord struct {
	Trial         int
	Seed          uint64
	Pose          goupf.Pose
	FitIndex      float64
	Density       float64
	Likelihood    float64
	Particle      int
	Steps         int
	Skipped       int
	Duration      time.Duration
	PositionError *float64 // Nil when the trial had no ground truth
	AngleError    *float64
}

// Open opens or creates the database at path and migrates it to the latest schema.
// A nil logger uses the global one.
func Open(path string, logger golog.Logger) (*Store, error) {
	if logger == nil {
		logger = golog.Global()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	s := &Store{db: db, logger: logger}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a new run with the given parameters and returns its identifier.
func (s *Store) CreateRun(ctx context.Context, label string, p goupf.Parameters) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, label, created_at, particles, points_per_step, window_width, selection, seed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), label, time.Now().UnixNano(), p.Particles, p.PointsPerStep, p.WindowWidth,
		string(p.Selection), int64(p.Seed))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "could not insert run")
	}
	s.logger.Debugw("run created", "run", id, "label", label)
	return id, nil
}

// SaveTrials records every trial and its step history in a single transaction.
func (s *Store) SaveTrials(ctx context.Context, run uuid.UUID, trials goupf.Trials) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	trialStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trials (run_id, trial, seed, x, y, z, yaw, pitch, roll, fit_index, density,
		 likelihood, particle, steps, skipped, duration_ns, position_error, angle_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "could not prepare trial insert")
	}
	defer trialStmt.Close()
	stepStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO steps (run_id, trial, step, points, skipped, terminal, ess, max_weight,
		 sum_squared_weights, duration_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "could not prepare step insert")
	}
	defer stepStmt.Close()

	for _, t := range trials.Runs {
		e := t.Estimate
		var posErr, angErr sql.NullFloat64
		if t.Error != nil {
			posErr = sql.NullFloat64{Float64: t.Error.Position, Valid: true}
			angErr = sql.NullFloat64{Float64: t.Error.Angle, Valid: true}
		}
		if _, err = trialStmt.ExecContext(ctx, run.String(), t.Trial, int64(t.Seed),
			e.Pose.Position.X, e.Pose.Position.Y, e.Pose.Position.Z, e.Pose.Yaw, e.Pose.Pitch, e.Pose.Roll,
			e.FitIndex, e.Density, e.Likelihood, e.Particle, e.Steps, e.Skipped, int64(e.Duration),
			posErr, angErr); err != nil {
			return errors.Wrapf(err, "could not insert trial %d", t.Trial)
		}
		for _, r := range t.Steps {
			if _, err = stepStmt.ExecContext(ctx, run.String(), t.Trial, r.Step, r.Points, r.Skipped,
				r.Terminal, r.ESS, r.MaxWeight, r.SumSquaredWeights, int64(r.Duration)); err != nil {
				return errors.Wrapf(err, "could not insert step %d of trial %d", r.Step, t.Trial)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit trials")
	}
	s.logger.Debugw("trials saved", "run", run, "trials", len(trials.Runs))
	return nil
}

// Runs returns the recorded runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, created_at, particles, points_per_step, window_width, selection, seed
		 FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "could not query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			id, sel string
			created int64
			seed    int64
		)
		if err := rows.Scan(&id, &r.Label, &created, &r.Particles, &r.PointsPerStep, &r.WindowWidth, &sel, &seed); err != nil {
			return nil, errors.Wrap(err, "could not scan run")
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "invalid run id %q", id)
		}
		r.Created = time.Unix(0, created)
		r.Selection = goupf.SelectionPolicy(sel)
		r.Seed = uint64(seed)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Trials returns the trials of a run ordered by trial number.
func (s *Store) Trials(ctx context.Context, run uuid.UUID) ([]TrialRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trial, seed, x, y, z, yaw, pitch, roll, fit_index, density, likelihood, particle,
		 steps, skipped, duration_ns, position_error, angle_error
		 FROM trials WHERE run_id = ? ORDER BY trial`, run.String())
	if err != nil {
		return nil, errors.Wrap(err, "could not query trials")
	}
	defer rows.Close()

	var out []TrialRecord
	for rows.Next() {
		var (
			t              TrialRecord
			seed, duration int64
			x, y, z        float64
			posErr, angErr sql.NullFloat64
		)
		if err := rows.Scan(&t.Trial, &seed, &x, &y, &z, &t.Pose.Yaw, &t.Pose.Pitch, &t.Pose.Roll,
			&t.FitIndex, &t.Density, &t.Likelihood, &t.Particle, &t.Steps, &t.Skipped, &duration,
			&posErr, &angErr); err != nil {
			return nil, errors.Wrap(err, "could not scan trial")
		}
		t.Seed = uint64(seed)
		t.Pose.Position = r3.Vector{X: x, Y: y, Z: z}
		t.Duration = time.Duration(duration)
		if posErr.Valid {
			t.PositionError = &posErr.Float64
		}
		if angErr.Valid {
			t.AngleError = &angErr.Float64
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Steps returns the step history of one trial of a run.
func (s *Store) Steps(ctx context.Context, run uuid.UUID, trial int) ([]goupf.StepResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, points, skipped, terminal, ess, max_weight, sum_squared_weights, duration_ns
		 FROM steps WHERE run_id = ? AND trial = ? ORDER BY step`, run.String(), trial)
	if err != nil {
		return nil, errors.Wrap(err, "could not query steps")
	}
	defer rows.Close()

	var out []goupf.StepResult
	for rows.Next() {
		var (
			r        goupf.StepResult
			duration int64
		)
		if err := rows.Scan(&r.Step, &r.Points, &r.Skipped, &r.Terminal, &r.ESS, &r.MaxWeight,
			&r.SumSquaredWeights, &duration); err != nil {
			return nil, errors.Wrap(err, "could not scan step")
		}
		r.Duration = time.Duration(duration)
		out = append(out, r)
	}
	return out, rows.Err()
}

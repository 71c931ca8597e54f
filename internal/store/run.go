package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/reconcile"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Run is one labeled trajectory.
type Run struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	Status     reconcile.Status `json:"status"`
	Method     reconcile.Method `json:"method,omitempty"`
	FrameCount int              `json:"frame_count"`
	Duration   float64          `json:"duration"`
	CreatedAt  time.Time        `json:"created_at"`
}

// RunRepository provides CRUD operations for runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// extra holds the kind-specific fields of an event as stored in the extra
// column.
type extra struct {
	RotationDegrees *float64 `json:"rotation_degrees,omitempty"`
	Direction       string   `json:"direction,omitempty"`
	TiltDegrees     *float64 `json:"tilt_degrees,omitempty"`
	NetDisplacement *float64 `json:"net_displacement,omitempty"`
}

func encodeExtra(e action.Event) (string, error) {
	r := e.ToRecord()
	b, err := json.Marshal(extra{
		RotationDegrees: r.RotationDegrees,
		Direction:       r.Direction,
		TiltDegrees:     r.TiltDegrees,
		NetDisplacement: r.NetDisplacement,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeEvent(kind string, object sql.NullString, start, end, confidence float64, raw string) (action.Event, error) {
	var x extra
	if err := json.Unmarshal([]byte(raw), &x); err != nil {
		return action.Event{}, fmt.Errorf("invalid extra for %s: %w", kind, err)
	}

	rec := action.Record{
		Action:          kind,
		StartTime:       start,
		EndTime:         end,
		Confidence:      confidence,
		RotationDegrees: x.RotationDegrees,
		Direction:       x.Direction,
		TiltDegrees:     x.TiltDegrees,
		NetDisplacement: x.NetDisplacement,
	}
	if object.Valid {
		rec.Object = &object.String
	}
	return rec.Event()
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts run with its events and, when non-nil, its result and the
// trajectory record it was labeled from, all in a single transaction. An
// empty ID is filled with a new UUID.
func (r *RunRepository) Create(run *Run, events []action.Event, result *reconcile.Result, record json.RawMessage) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, source, status, method, frame_count, duration, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), string(run.Method), run.FrameCount, run.Duration, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_events (run_id, sequence, action, object, start_time, end_time, confidence, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range events {
		x, err := encodeExtra(e)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(run.ID, i, string(e.Kind), nullable(e.Object), e.Start, e.End, e.Confidence, x); err != nil {
			return fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}

	if result != nil {
		a := result.Action
		x, err := encodeExtra(a)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO run_results (run_id, action, object, start_time, end_time, confidence, extra, method, status, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, string(a.Kind), nullable(a.Object), a.Start, a.End, a.Confidence, x,
			string(result.Method), string(result.Status), result.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	if record != nil {
		if _, err := tx.Exec(`INSERT INTO run_trajectories (run_id, data) VALUES (?, ?)`, run.ID, string(record)); err != nil {
			return fmt.Errorf("failed to insert trajectory: %w", err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, source, status, method, frame_count, duration, created_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	run := &Run{}
	var status, method string
	if err := row.Scan(&run.ID, &run.Source, &status, &method, &run.FrameCount, &run.Duration, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Status = reconcile.Status(status)
	run.Method = reconcile.Method(method)
	return run, nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List retrieves all runs, newest first.
func (r *RunRepository) List() ([]*Run, error) {
	rows, err := r.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Events retrieves the events of a run in sequence order. A run without
// events yields an empty slice; an unknown run yields ErrNotFound.
func (r *RunRepository) Events(runID string) ([]action.Event, error) {
	if err := r.exists(runID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT action, object, start_time, end_time, confidence, extra
		 FROM run_events
		 WHERE run_id = ?
		 ORDER BY sequence`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []action.Event{}
	for rows.Next() {
		var (
			kind, raw              string
			object                 sql.NullString
			start, end, confidence float64
		)
		if err := rows.Scan(&kind, &object, &start, &end, &confidence, &raw); err != nil {
			return nil, err
		}
		e, err := decodeEvent(kind, object, start, end, confidence, raw)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Result retrieves the reconciled result of a run. It returns ErrNotFound
// when the run has none.
func (r *RunRepository) Result(runID string) (*reconcile.Result, error) {
	var (
		kind, raw, method, status, reason string
		object                            sql.NullString
		start, end, confidence            float64
	)
	err := r.db.QueryRow(
		`SELECT action, object, start_time, end_time, confidence, extra, method, status, reason
		 FROM run_results WHERE run_id = ?`,
		runID,
	).Scan(&kind, &object, &start, &end, &confidence, &raw, &method, &status, &reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	e, err := decodeEvent(kind, object, start, end, confidence, raw)
	if err != nil {
		return nil, err
	}
	return &reconcile.Result{
		Action: e,
		Method: reconcile.Method(method),
		Status: reconcile.Status(status),
		Reason: reason,
	}, nil
}

// Delete removes a run and everything attached to it.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *RunRepository) exists(id string) error {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM runs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/qcircuit/internal/log"
)

// ErrRunNotFound is returned by Find for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one sampled execution of a circuit.
type Run struct {
	ID        string
	Circuit   string
	Pass      string // compile pass applied before sampling, empty for none
	Qubits    int
	Shots     int
	Seed      uint64
	Counts    map[string]int
	CreatedAt time.Time
}

// runModel is the row shape of the runs table. Seeds are stored bit-for-bit in a
// signed INTEGER column; timestamps are Unix nanoseconds.
type runModel struct {
	ID        string
	Circuit   string
	Pass      string
	Qubits    int
	Shots     int
	Seed      int64
	Counts    string
	CreatedAt int64
}

func toRunModel(r *Run) (*runModel, error) {
	counts, err := json.Marshal(r.Counts)
	if err != nil {
		return nil, fmt.Errorf("encoding counts: %w", err)
	}
	return &runModel{
		ID:        r.ID,
		Circuit:   r.Circuit,
		Pass:      r.Pass,
		Qubits:    r.Qubits,
		Shots:     r.Shots,
		Seed:      int64(r.Seed), //nolint:gosec // G115: round-trips through fromRunModel
		Counts:    string(counts),
		CreatedAt: r.CreatedAt.UnixNano(),
	}, nil
}

func (m *runModel) toRun() (*Run, error) {
	var counts map[string]int
	if err := json.Unmarshal([]byte(m.Counts), &counts); err != nil {
		return nil, fmt.Errorf("decoding counts of run %s: %w", m.ID, err)
	}
	return &Run{
		ID:        m.ID,
		Circuit:   m.Circuit,
		Pass:      m.Pass,
		Qubits:    m.Qubits,
		Shots:     m.Shots,
		Seed:      uint64(m.Seed), //nolint:gosec // G115: inverse of toRunModel
		Counts:    counts,
		CreatedAt: time.Unix(0, m.CreatedAt),
	}, nil
}

const runColumns = `id, circuit, pass, qubits, shots, seed, counts, created_at`

func scanRun(scanner interface{ Scan(...any) error }) (*runModel, error) {
	var m runModel
	err := scanner.Scan(&m.ID, &m.Circuit, &m.Pass, &m.Qubits, &m.Shots, &m.Seed, &m.Counts, &m.CreatedAt)
	return &m, err
}

// RunRepository reads and writes runs.
type RunRepository struct {
	db *sql.DB
}

func newRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record inserts run. A missing ID is filled with a new UUID and a zero CreatedAt
// with the current time; both are written back to run.
func (r *RunRepository) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	model, err := toRunModel(run)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		model.ID, model.Circuit, model.Pass, model.Qubits, model.Shots, model.Seed, model.Counts, model.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	log.Debug(log.CatStore, "Recorded run", "id", run.ID, "circuit", run.Circuit, "shots", run.Shots)
	return nil
}

// Find returns the run with the given id.
func (r *RunRepository) Find(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	model, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	return model.toRun()
}

// ListOptions filters List.
type ListOptions struct {
	Circuit string // only runs of this circuit when set
	Limit   int    // at most this many runs when positive
}

// List returns runs newest first.
func (r *RunRepository) List(ctx context.Context, opts ListOptions) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if opts.Circuit != "" {
		query += ` WHERE circuit = ?`
		args = append(args, opts.Circuit)
	}
	query += ` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		model, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := model.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Delete removes runs created before cutoff and returns how many were removed.
func (r *RunRepository) Delete(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted runs: %w", err)
	}
	log.Info(log.CatStore, "Pruned runs", "count", n, "before", cutoff.Format(time.RFC3339))
	return n, nil
}

// Package runstore provides SQLite-backed history of bot runs,
// feeding the status command. The quota and activity-log files stay
// plain text; this store is purely additive.
package runstore

import (
	"database/sql"
	"fmt"

	"github.com/hochfrequenz/activity-bot/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or updates a run record
func (s *Store) SaveRun(rec *domain.RunRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, branch, pr_number, outcome, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			branch = excluded.branch,
			pr_number = excluded.pr_number,
			outcome = excluded.outcome,
			error = excluded.error,
			finished_at = excluded.finished_at
	`,
		rec.ID,
		rec.Branch,
		rec.PRNumber,
		string(rec.Outcome),
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	return err
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id string) (*domain.RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, branch, pr_number, outcome, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	var rec domain.RunRecord
	var outcome string
	err := row.Scan(&rec.ID, &rec.Branch, &rec.PRNumber, &outcome, &rec.Error, &rec.StartedAt, &rec.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Outcome = domain.RunOutcome(outcome)
	return &rec, nil
}

// ListRecent returns the most recent runs, newest first
func (s *Store) ListRecent(limit int) ([]*domain.RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, branch, pr_number, outcome, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var outcome string
		if err := rows.Scan(&rec.ID, &rec.Branch, &rec.PRNumber, &outcome, &rec.Error, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		rec.Outcome = domain.RunOutcome(outcome)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// CountByOutcome returns how many runs finished in each outcome
func (s *Store) CountByOutcome() (map[domain.RunOutcome]int, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM runs GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.RunOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[domain.RunOutcome(outcome)] = n
	}
	return counts, rows.Err()
}

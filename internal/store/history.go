package store

import (
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// RunStore persists workflow runs and their per-step outcomes so completed
// runs can be inspected after the WebSocket session is gone.
type RunStore struct {
	DB *sql.DB
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Status      string    `json:"status"`
	FinalAnswer string    `json:"final_answer,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StepRecord is one executed step of a stored run.
type StepRecord struct {
	Idx         int    `json:"idx"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Result      string `json:"result"`
}

func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT,
			status TEXT,
			final_answer TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT,
			idx INTEGER,
			description TEXT,
			status TEXT,
			result TEXT,
			PRIMARY KEY (run_id, idx)
		);`,
	}
	for _, q := range queries {
		if _, err = db.Exec(q); err != nil {
			return nil, err
		}
	}

	return &RunStore{DB: db}, nil
}

func (s *RunStore) SaveRun(id, query, status, finalAnswer string) error {
	q := `INSERT INTO runs (id, query, status, final_answer) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, final_answer = excluded.final_answer`
	_, err := s.DB.Exec(q, id, query, status, finalAnswer)
	return err
}

func (s *RunStore) SaveStep(runID string, idx int, description, status, result string) error {
	q := `INSERT INTO steps (run_id, idx, description, status, result) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET description = excluded.description, status = excluded.status, result = excluded.result`
	_, err := s.DB.Exec(q, runID, idx, description, status, result)
	return err
}

// RecentRuns returns the newest runs first.
func (s *RunStore) RecentRuns(limit int) ([]RunSummary, error) {
	rows, err := s.DB.Query(
		`SELECT id, query, status, final_answer, created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Query, &r.Status, &r.FinalAnswer, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunSteps returns the stored steps of one run in plan order.
func (s *RunStore) RunSteps(runID string) ([]StepRecord, error) {
	rows, err := s.DB.Query(
		`SELECT idx, description, status, result FROM steps WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var st StepRecord
		if err := rows.Scan(&st.Idx, &st.Description, &st.Status, &st.Result); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *RunStore) Close() error {
	return s.DB.Close()
}

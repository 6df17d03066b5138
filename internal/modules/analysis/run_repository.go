package analysis

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// Run is one persisted pipeline run report.
type Run struct {
	ID            string                 `json:"id"`
	TargetDate    time.Time              `json:"target_date"`
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
	TotalSymbols  int                    `json:"total_symbols"`
	Succeeded     int                    `json:"succeeded"`
	Failed        int                    `json:"failed"`
	BarsStored    int                    `json:"bars_stored"`
	SignalsStored int                    `json:"signals_stored"`
	Report        map[string]interface{} `json:"report"`
}

// RunRepository persists pipeline run reports in analysis.db.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "pipeline_runs").Logger(),
	}
}

// Save stores a run report, replacing any previous row with the same id.
func (r *RunRepository) Save(run *Run) error {
	report, err := json.Marshal(orEmpty(run.Report))
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO pipeline_runs
			(id, target_date, started_at, finished_at, total_symbols,
			 succeeded, failed, bars_stored, signals_stored, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = excluded.finished_at,
			total_symbols = excluded.total_symbols,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			bars_stored = excluded.bars_stored,
			signals_stored = excluded.signals_stored,
			report = excluded.report`,
		run.ID, domain.DateString(run.TargetDate),
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.TotalSymbols, run.Succeeded, run.Failed,
		run.BarsStored, run.SignalsStored, string(report))
	if err != nil {
		return fmt.Errorf("failed to save pipeline run %s: %w", run.ID, err)
	}
	return nil
}

// Latest returns the most recent runs, newest first.
func (r *RunRepository) Latest(limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, target_date, started_at, finished_at, total_symbols,
		       succeeded, failed, bars_stored, signals_stored, report
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipeline runs: %w", err)
	}
	return out, nil
}

// Get returns one run by id, or nil when absent.
func (r *RunRepository) Get(id string) (*Run, error) {
	rows, err := r.db.Query(`
		SELECT id, target_date, started_at, finished_at, total_symbols,
		       succeeded, failed, bars_stored, signals_stored, report
		FROM pipeline_runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline run %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRun(rows)
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var run Run
	var target, started, finished, report string

	err := rows.Scan(&run.ID, &target, &started, &finished, &run.TotalSymbols,
		&run.Succeeded, &run.Failed, &run.BarsStored, &run.SignalsStored, &report)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
	}

	if ts, err := time.Parse("2006-01-02", target); err == nil {
		run.TargetDate = ts
	}
	if ts, err := time.Parse(time.RFC3339, started); err == nil {
		run.StartedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, finished); err == nil {
		run.FinishedAt = ts
	}
	if err := json.Unmarshal([]byte(report), &run.Report); err != nil {
		run.Report = map[string]interface{}{}
	}
	return &run, nil
}

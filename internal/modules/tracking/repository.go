// Package tracking maintains per (symbol, source) ingestion watermarks.
package tracking

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// Repository persists ingestion watermarks in market.db.
// last_updated_date is monotonic non-decreasing under Advance; Fail
// records the error without touching the date, so the next run resumes
// from the same position.
type Repository struct {
	db    *sql.DB
	clock domain.Clock
	log   zerolog.Logger
}

// NewRepository creates a new watermark repository.
func NewRepository(db *sql.DB, clock domain.Clock, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		clock: clock,
		log:   log.With().Str("repo", "tracking").Logger(),
	}
}

const trackingColumns = `symbol, source, last_updated_date, total_records,
	last_update_status, last_error_message, last_update_duration_seconds, updated_at`

// GetOrCreate returns the watermark for (symbol, source), creating it
// lazily at the genesis date with PENDING status on first touch.
func (r *Repository) GetOrCreate(symbol string, source domain.Source, genesis time.Time) (*domain.Watermark, error) {
	symbol = domain.NormalizeSymbol(symbol)

	wm, err := r.get(symbol, source)
	if err != nil {
		return nil, err
	}
	if wm != nil {
		return wm, nil
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	_, err = r.db.Exec(`
		INSERT INTO stock_update_tracking
			(symbol, source, last_updated_date, total_records, last_update_status, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (symbol, source) DO NOTHING`,
		symbol, string(source), domain.DateString(genesis), string(domain.UpdatePending), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create watermark for %s/%s: %w", symbol, source, err)
	}

	return r.get(symbol, source)
}

// Advance records a successful update: last_updated_date moves to
// max(previous, lastDate), the status becomes SUCCESS and any previous
// error is cleared.
func (r *Repository) Advance(symbol string, source domain.Source, lastDate time.Time, count int64, duration time.Duration) error {
	symbol = domain.NormalizeSymbol(symbol)
	now := r.clock.Now().UTC().Format(time.RFC3339)

	result, err := r.db.Exec(`
		UPDATE stock_update_tracking SET
			last_updated_date = MAX(last_updated_date, ?),
			total_records = total_records + ?,
			last_update_status = ?,
			last_error_message = NULL,
			last_update_duration_seconds = ?,
			updated_at = ?
		WHERE symbol = ? AND source = ?`,
		domain.DateString(lastDate), count, string(domain.UpdateSuccess),
		duration.Seconds(), now, symbol, string(source))
	if err != nil {
		return fmt.Errorf("failed to advance watermark for %s/%s: %w", symbol, source, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("watermark not found for %s/%s", symbol, source)
	}

	r.log.Debug().
		Str("symbol", symbol).
		Str("source", string(source)).
		Str("last_date", domain.DateString(lastDate)).
		Int64("count", count).
		Msg("Watermark advanced")

	return nil
}

// Fail records a failed update. The watermark date is left untouched so
// the next run retries the same window.
func (r *Repository) Fail(symbol string, source domain.Source, message string) error {
	symbol = domain.NormalizeSymbol(symbol)
	now := r.clock.Now().UTC().Format(time.RFC3339)

	result, err := r.db.Exec(`
		UPDATE stock_update_tracking SET
			last_update_status = ?,
			last_error_message = ?,
			updated_at = ?
		WHERE symbol = ? AND source = ?`,
		string(domain.UpdateError), message, now, symbol, string(source))
	if err != nil {
		return fmt.Errorf("failed to mark watermark error for %s/%s: %w", symbol, source, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("watermark not found for %s/%s", symbol, source)
	}

	return nil
}

// List returns all watermarks, ordered by symbol then source. Used by
// the status endpoint.
func (r *Repository) List() ([]domain.Watermark, error) {
	rows, err := r.db.Query(`SELECT ` + trackingColumns + `
		FROM stock_update_tracking ORDER BY symbol, source`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watermarks: %w", err)
	}
	defer rows.Close()

	var watermarks []domain.Watermark
	for rows.Next() {
		wm, err := scanWatermark(rows)
		if err != nil {
			return nil, err
		}
		watermarks = append(watermarks, *wm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watermarks: %w", err)
	}
	return watermarks, nil
}

func (r *Repository) get(symbol string, source domain.Source) (*domain.Watermark, error) {
	rows, err := r.db.Query(`SELECT `+trackingColumns+`
		FROM stock_update_tracking WHERE symbol = ? AND source = ?`,
		symbol, string(source))
	if err != nil {
		return nil, fmt.Errorf("failed to query watermark for %s/%s: %w", symbol, source, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanWatermark(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWatermark(row rowScanner) (*domain.Watermark, error) {
	var wm domain.Watermark
	var source, lastDate, status, updatedAt string
	var errMsg sql.NullString

	err := row.Scan(&wm.Symbol, &source, &lastDate, &wm.TotalRecords,
		&status, &errMsg, &wm.LastDurationSecs, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan watermark: %w", err)
	}

	wm.Source = domain.Source(source)
	wm.LastUpdateStatus = domain.UpdateStatus(status)
	if errMsg.Valid {
		wm.LastErrorMessage = errMsg.String
	}

	parsed, err := time.Parse("2006-01-02", lastDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watermark date %q: %w", lastDate, err)
	}
	wm.LastUpdatedDate = parsed

	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		wm.UpdatedAt = ts
	}

	return &wm, nil
}

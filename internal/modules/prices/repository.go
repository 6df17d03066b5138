package prices

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// Repository handles stock price persistence in market.db.
type Repository struct {
	db    *sql.DB
	clock domain.Clock
	log   zerolog.Logger
}

// NewRepository creates a new price repository.
func NewRepository(db *sql.DB, clock domain.Clock, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		clock: clock,
		log:   log.With().Str("repo", "prices").Logger(),
	}
}

const priceColumns = `symbol, time, open, high, low, close, volume, value, source, created_at, updated_at`

// UpsertBatch inserts or updates bars keyed by (symbol, time) inside a
// single transaction. Existing rows keep their created_at; numeric
// fields and updated_at are overwritten. Returns the number of newly
// inserted rows.
func (r *Repository) UpsertBatch(tx *sql.Tx, bars []domain.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	inserted := 0

	stmt, err := tx.Prepare(`
		INSERT INTO stock_prices (` + priceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, time) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			value = excluded.value,
			source = excluded.source,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		var exists bool
		err := tx.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM stock_prices WHERE symbol = ? AND time = ?)`,
			bar.Symbol, bar.Time.Unix(),
		).Scan(&exists)
		if err != nil {
			return inserted, fmt.Errorf("failed to check existing bar: %w", err)
		}

		_, err = stmt.Exec(
			bar.Symbol, bar.Time.Unix(),
			bar.Open, bar.High, bar.Low, bar.Close,
			bar.Volume, bar.Value(), string(bar.Source),
			now, now,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to upsert bar %s@%s: %w",
				bar.Symbol, domain.DateString(bar.Time), err)
		}

		if !exists {
			inserted++
		}
	}

	return inserted, nil
}

// GetBars returns bars for a symbol in [from, to] inclusive, ascending.
func (r *Repository) GetBars(symbol string, from, to time.Time) ([]domain.Bar, error) {
	query := `SELECT ` + priceColumns + ` FROM stock_prices
		WHERE symbol = ? AND time >= ? AND time <= ?
		ORDER BY time ASC`

	rows, err := r.db.Query(query, domain.NormalizeSymbol(symbol),
		domain.Date(from).Unix(), domain.Date(to).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetRecentBars returns the most recent n bars for a symbol, ascending.
func (r *Repository) GetRecentBars(symbol string, n int) ([]domain.Bar, error) {
	query := `SELECT ` + priceColumns + ` FROM (
			SELECT ` + priceColumns + ` FROM stock_prices
			WHERE symbol = ?
			ORDER BY time DESC
			LIMIT ?
		) ORDER BY time ASC`

	rows, err := r.db.Query(query, domain.NormalizeSymbol(symbol), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// LastDate returns the latest bar date stored for a symbol, or the zero
// time if no bars exist.
func (r *Repository) LastDate(symbol string) (time.Time, error) {
	var unix sql.NullInt64
	err := r.db.QueryRow(
		`SELECT MAX(time) FROM stock_prices WHERE symbol = ?`,
		domain.NormalizeSymbol(symbol),
	).Scan(&unix)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last bar date: %w", err)
	}
	if !unix.Valid {
		return time.Time{}, nil
	}
	return time.Unix(unix.Int64, 0).UTC(), nil
}

// Count returns the number of bars stored for a symbol.
func (r *Repository) Count(symbol string) (int64, error) {
	var count int64
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM stock_prices WHERE symbol = ?`,
		domain.NormalizeSymbol(symbol),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return count, nil
}

// CreatedAt returns the created_at value for a specific bar. Used by
// tests to verify that re-ingestion preserves original insert times.
func (r *Repository) CreatedAt(symbol string, t time.Time) (string, error) {
	var createdAt string
	err := r.db.QueryRow(
		`SELECT created_at FROM stock_prices WHERE symbol = ? AND time = ?`,
		domain.NormalizeSymbol(symbol), domain.Date(t).Unix(),
	).Scan(&createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to query bar created_at: %w", err)
	}
	return createdAt, nil
}

func scanBars(rows *sql.Rows) ([]domain.Bar, error) {
	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var unix int64
		var value float64
		var source, createdAt, updatedAt string

		err := rows.Scan(&b.Symbol, &unix, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &value, &source, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}

		b.Time = time.Unix(unix, 0).UTC()
		b.Source = domain.Source(source)
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}
	return bars, nil
}

package prices

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// ForeignRepository handles foreign buy/sell flow persistence.
type ForeignRepository struct {
	db    *sql.DB
	clock domain.Clock
	log   zerolog.Logger
}

// NewForeignRepository creates a new foreign-flow repository.
func NewForeignRepository(db *sql.DB, clock domain.Clock, log zerolog.Logger) *ForeignRepository {
	return &ForeignRepository{
		db:    db,
		clock: clock,
		log:   log.With().Str("repo", "foreign_trades").Logger(),
	}
}

// UpsertBatch inserts or updates foreign-flow rows keyed by
// (symbol, time) inside the caller's transaction. Derived net fields are
// computed here so stored rows are always internally consistent.
func (r *ForeignRepository) UpsertBatch(tx *sql.Tx, flows []domain.ForeignFlow) (int, error) {
	if len(flows) == 0 {
		return 0, nil
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	inserted := 0

	stmt, err := tx.Prepare(`
		INSERT INTO foreign_trades
			(symbol, time, buy_volume, sell_volume, net_volume,
			 buy_value, sell_value, net_value, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, time) DO UPDATE SET
			buy_volume = excluded.buy_volume,
			sell_volume = excluded.sell_volume,
			net_volume = excluded.net_volume,
			buy_value = excluded.buy_value,
			sell_value = excluded.sell_value,
			net_value = excluded.net_value,
			source = excluded.source,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare foreign upsert: %w", err)
	}
	defer stmt.Close()

	for _, flow := range flows {
		var exists bool
		err := tx.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM foreign_trades WHERE symbol = ? AND time = ?)`,
			flow.Symbol, domain.Date(flow.Time).Unix(),
		).Scan(&exists)
		if err != nil {
			return inserted, fmt.Errorf("failed to check existing foreign row: %w", err)
		}

		_, err = stmt.Exec(
			flow.Symbol, domain.Date(flow.Time).Unix(),
			flow.BuyVolume, flow.SellVolume, flow.NetVolume(),
			flow.BuyValue, flow.SellValue, flow.NetValue(),
			string(flow.Source), now, now,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to upsert foreign row %s@%s: %w",
				flow.Symbol, domain.DateString(flow.Time), err)
		}

		if !exists {
			inserted++
		}
	}

	return inserted, nil
}

// GetFlows returns foreign-flow rows for a symbol in [from, to], ascending.
func (r *ForeignRepository) GetFlows(symbol string, from, to time.Time) ([]domain.ForeignFlow, error) {
	rows, err := r.db.Query(`
		SELECT symbol, time, buy_volume, sell_volume, buy_value, sell_value, source
		FROM foreign_trades
		WHERE symbol = ? AND time >= ? AND time <= ?
		ORDER BY time ASC`,
		domain.NormalizeSymbol(symbol), domain.Date(from).Unix(), domain.Date(to).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.ForeignFlow
	for rows.Next() {
		var f domain.ForeignFlow
		var unix int64
		var source string

		err := rows.Scan(&f.Symbol, &unix, &f.BuyVolume, &f.SellVolume,
			&f.BuyValue, &f.SellValue, &source)
		if err != nil {
			return nil, fmt.Errorf("failed to scan foreign flow: %w", err)
		}

		f.Time = time.Unix(unix, 0).UTC()
		f.Source = domain.Source(source)
		flows = append(flows, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign flows: %w", err)
	}
	return flows, nil
}

// Package universe manages the curated symbol universe.
package universe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// Repository handles stock universe persistence in universe.db.
type Repository struct {
	db    *sql.DB
	clock domain.Clock
	log   zerolog.Logger
}

// NewRepository creates a new universe repository.
func NewRepository(db *sql.DB, clock domain.Clock, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		clock: clock,
		log:   log.With().Str("repo", "universe").Logger(),
	}
}

const stockColumns = `symbol, name, exchange, sector, industry, tier, rank,
	status, first_appeared, weeks_active, is_active`

// Upsert inserts or updates a stock. New entries get status NEW and
// first_appeared set to today; existing entries keep both and have
// weeks_active maintained by TouchActive.
func (r *Repository) Upsert(stock domain.Stock) error {
	stock.Symbol = domain.NormalizeSymbol(stock.Symbol)
	now := r.clock.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	status := stock.Status
	if status == "" {
		status = domain.StockNew
	}

	_, err := r.db.Exec(`
		INSERT INTO stocks
			(symbol, name, exchange, sector, industry, tier, rank, status,
			 first_appeared, weeks_active, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			sector = excluded.sector,
			industry = excluded.industry,
			tier = excluded.tier,
			rank = excluded.rank,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		stock.Symbol, stock.Name, stock.Exchange, stock.Sector, stock.Industry,
		stock.Tier, stock.Rank, string(status),
		domain.DateString(now), boolToInt(stock.IsActive), nowStr, nowStr)
	if err != nil {
		return fmt.Errorf("failed to upsert stock %s: %w", stock.Symbol, err)
	}
	return nil
}

// TouchActive marks a symbol as seen in the current weekly universe
// refresh: status moves NEW -> ACTIVE once it has history, and
// weeks_active is incremented.
func (r *Repository) TouchActive(symbol string) error {
	now := r.clock.Now().UTC().Format(time.RFC3339)
	_, err := r.db.Exec(`
		UPDATE stocks SET
			weeks_active = weeks_active + 1,
			status = CASE WHEN status = 'NEW' AND weeks_active >= 1 THEN 'ACTIVE' ELSE status END,
			is_active = 1,
			updated_at = ?
		WHERE symbol = ?`,
		now, domain.NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to touch stock %s: %w", symbol, err)
	}
	return nil
}

// Deactivate marks a symbol INACTIVE (dropped from the index).
func (r *Repository) Deactivate(symbol string) error {
	now := r.clock.Now().UTC().Format(time.RFC3339)
	_, err := r.db.Exec(`
		UPDATE stocks SET status = 'INACTIVE', is_active = 0, updated_at = ?
		WHERE symbol = ?`,
		now, domain.NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to deactivate stock %s: %w", symbol, err)
	}
	return nil
}

// GetBySymbol returns a stock by symbol, or nil if not found.
func (r *Repository) GetBySymbol(symbol string) (*domain.Stock, error) {
	rows, err := r.db.Query(`SELECT `+stockColumns+` FROM stocks WHERE symbol = ?`,
		domain.NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query stock by symbol: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	stock, err := scanStock(rows)
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// ListActive returns all active stocks ordered by rank.
func (r *Repository) ListActive() ([]domain.Stock, error) {
	rows, err := r.db.Query(`SELECT ` + stockColumns + `
		FROM stocks WHERE is_active = 1 ORDER BY rank, symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active stocks: %w", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stocks: %w", err)
	}
	return stocks, nil
}

func scanStock(rows *sql.Rows) (domain.Stock, error) {
	var s domain.Stock
	var status string
	var firstAppeared sql.NullString
	var isActive int

	err := rows.Scan(&s.Symbol, &s.Name, &s.Exchange, &s.Sector, &s.Industry,
		&s.Tier, &s.Rank, &status, &firstAppeared, &s.WeeksActive, &isActive)
	if err != nil {
		return s, fmt.Errorf("failed to scan stock: %w", err)
	}

	s.Status = domain.StockStatus(status)
	s.IsActive = isActive != 0
	if firstAppeared.Valid {
		if ts, err := time.Parse("2006-01-02", firstAppeared.String); err == nil {
			s.FirstAppeared = ts
		}
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Provider adapts the repository to the domain.UniverseProvider
// interface consumed by the orchestrator.
type Provider struct {
	repo *Repository
}

// NewProvider creates a repository-backed universe provider.
func NewProvider(repo *Repository) *Provider {
	return &Provider{repo: repo}
}

// ActiveSymbols returns the active universe. The snapshot is taken once
// per call; the orchestrator holds it for the whole run.
func (p *Provider) ActiveSymbols(ctx context.Context) ([]domain.Stock, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrCancelled
	}
	return p.repo.ListActive()
}

// StaticProvider serves a fixed symbol list. Used for seeding and tests.
type StaticProvider struct {
	Stocks []domain.Stock
}

// ActiveSymbols implements domain.UniverseProvider.
func (p *StaticProvider) ActiveSymbols(ctx context.Context) ([]domain.Stock, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrCancelled
	}
	return p.Stocks, nil
}

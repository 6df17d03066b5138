package indicators

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// FrameCache stores computed frames keyed by (symbol, end date, config
// hash) so repeated analysis runs over an unchanged window skip the
// recompute. Ingestion invalidates a symbol's entries whenever new bars
// land.
type FrameCache struct {
	db    *sql.DB
	clock domain.Clock
	log   zerolog.Logger
}

// NewFrameCache creates a frame cache over the given database.
func NewFrameCache(db *sql.DB, clock domain.Clock, log zerolog.Logger) *FrameCache {
	return &FrameCache{
		db:    db,
		clock: clock,
		log:   log.With().Str("repo", "frame_cache").Logger(),
	}
}

// Get returns the cached frame for the key, or nil on a miss. Decode
// failures are treated as misses and the stale row is removed.
func (c *FrameCache) Get(symbol string, endDate time.Time, configHash string) (*Frame, error) {
	symbol = domain.NormalizeSymbol(symbol)

	var payload []byte
	err := c.db.QueryRow(`
		SELECT payload FROM frame_cache
		WHERE symbol = ? AND end_date = ? AND config_hash = ?`,
		symbol, domain.DateString(endDate), configHash).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query frame cache: %w", err)
	}

	var frame Frame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Dropping undecodable cached frame")
		_ = c.Invalidate(symbol)
		return nil, nil
	}
	return &frame, nil
}

// Put stores a computed frame, replacing any previous entry for the key.
func (c *FrameCache) Put(frame *Frame, endDate time.Time, configHash string) error {
	payload, err := msgpack.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame for cache: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT INTO frame_cache (symbol, end_date, config_hash, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol, end_date, config_hash) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at`,
		frame.Symbol, domain.DateString(endDate), configHash, payload,
		c.clock.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store cached frame: %w", err)
	}
	return nil
}

// Invalidate removes all cached frames for a symbol.
func (c *FrameCache) Invalidate(symbol string) error {
	_, err := c.db.Exec(`DELETE FROM frame_cache WHERE symbol = ?`,
		domain.NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to invalidate frame cache for %s: %w", symbol, err)
	}
	return nil
}

// Prune removes cache entries older than the retention window.
func (c *FrameCache) Prune(olderThan time.Duration) (int64, error) {
	cutoff := c.clock.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := c.db.Exec(`DELETE FROM frame_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune frame cache: %w", err)
	}
	return result.RowsAffected()
}

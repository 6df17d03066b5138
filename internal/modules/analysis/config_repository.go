package analysis

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// Config types stored in analysis_configurations.
const (
	ConfigTypeIndicator = "indicator"
	ConfigTypeScoring   = "scoring"
	ConfigTypeAnalysis  = "analysis"
)

// ConfigRecord is one row of analysis_configurations.
type ConfigRecord struct {
	ID          int64
	Name        string
	Description string
	ConfigType  string
	ConfigData  string
	Version     int
	IsActive    bool
	ContentHash string
	CreatedBy   string
}

// ConfigRepository resolves config payloads to stable row IDs in
// analysis.db. Resolution is idempotent by content hash: an unchanged
// payload reuses its row, a changed one bumps the version.
type ConfigRepository struct {
	db    *sql.DB
	clock domain.Clock
	log   zerolog.Logger
}

// NewConfigRepository creates a config repository.
func NewConfigRepository(db *sql.DB, clock domain.Clock, log zerolog.Logger) *ConfigRepository {
	return &ConfigRepository{
		db:    db,
		clock: clock,
		log:   log.With().Str("repo", "analysis_configs").Logger(),
	}
}

// GetOrCreate resolves a config payload to its row, creating a new
// version when the content hash changed since the latest stored version
// of the same name.
func (r *ConfigRepository) GetOrCreate(name, description, configType string, config interface{}) (*ConfigRecord, error) {
	hash, err := Fingerprint(config)
	if err != nil {
		return nil, err
	}

	existing, err := r.latestByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ContentHash == hash {
		return existing, nil
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config %s: %w", name, err)
	}

	version := 1
	if existing != nil {
		version = existing.Version + 1
		r.log.Info().
			Str("name", name).
			Int("version", version).
			Msg("Config payload changed, creating new version")
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	result, err := r.db.Exec(`
		INSERT INTO analysis_configurations
			(name, description, config_type, config_data, version, is_active,
			 content_hash, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, 'system', ?, ?)`,
		name, description, configType, string(payload), version, hash, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert config %s v%d: %w", name, version, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read config id: %w", err)
	}

	return &ConfigRecord{
		ID:          id,
		Name:        name,
		Description: description,
		ConfigType:  configType,
		ConfigData:  string(payload),
		Version:     version,
		IsActive:    true,
		ContentHash: hash,
		CreatedBy:   "system",
	}, nil
}

// GetByID returns a config row, or nil when absent.
func (r *ConfigRepository) GetByID(id int64) (*ConfigRecord, error) {
	return r.queryOne(`
		SELECT id, name, description, config_type, config_data, version, is_active, content_hash, created_by
		FROM analysis_configurations WHERE id = ?`, id)
}

func (r *ConfigRepository) latestByName(name string) (*ConfigRecord, error) {
	return r.queryOne(`
		SELECT id, name, description, config_type, config_data, version, is_active, content_hash, created_by
		FROM analysis_configurations
		WHERE name = ?
		ORDER BY version DESC LIMIT 1`, name)
}

func (r *ConfigRepository) queryOne(query string, args ...interface{}) (*ConfigRecord, error) {
	var rec ConfigRecord
	var active int
	err := r.db.QueryRow(query, args...).Scan(
		&rec.ID, &rec.Name, &rec.Description, &rec.ConfigType, &rec.ConfigData,
		&rec.Version, &active, &rec.ContentHash, &rec.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}
	rec.IsActive = active != 0
	return &rec, nil
}

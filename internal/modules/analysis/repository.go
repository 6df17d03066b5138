package analysis

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/signals"
)

// Repository persists indicator calculations, analysis results and
// signal rows in analysis.db. Writes take the caller's transaction so
// one symbol's analysis commits atomically.
type Repository struct {
	db    *sql.DB
	clock domain.Clock
	log   zerolog.Logger
}

// NewRepository creates an analysis repository.
func NewRepository(db *sql.DB, clock domain.Clock, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		clock: clock,
		log:   log.With().Str("repo", "analysis").Logger(),
	}
}

// Calculation is one indicator_calculations row.
type Calculation struct {
	ID         int64
	Symbol     string
	Date       time.Time
	ConfigID   int64
	Indicators map[string]interface{}
	DataPoints int
	StartDate  time.Time
	EndDate    time.Time
	DurationMS int64
}

// UpsertCalculation stores an indicator calculation, replacing the row
// for the same (symbol, calculation_date, config_id). Returns the row
// id.
func (r *Repository) UpsertCalculation(tx *sql.Tx, c *Calculation) (int64, error) {
	payload, err := json.Marshal(c.Indicators)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal indicator snapshot: %w", err)
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`
		INSERT INTO indicator_calculations
			(symbol, calculation_date, config_id, indicators, data_points,
			 start_date, end_date, calculation_duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, calculation_date, config_id) DO UPDATE SET
			indicators = excluded.indicators,
			data_points = excluded.data_points,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			calculation_duration_ms = excluded.calculation_duration_ms`,
		c.Symbol, domain.DateString(c.Date), c.ConfigID, string(payload),
		c.DataPoints, domain.DateString(c.StartDate), domain.DateString(c.EndDate),
		c.DurationMS, now)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert indicator calculation: %w", err)
	}

	var id int64
	err = tx.QueryRow(`
		SELECT id FROM indicator_calculations
		WHERE symbol = ? AND calculation_date = ? AND config_id = ?`,
		c.Symbol, domain.DateString(c.Date), c.ConfigID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read calculation id: %w", err)
	}
	return id, nil
}

// Result is one analysis_results row.
type Result struct {
	ID            int64
	Symbol        string
	Date          time.Time
	CalculationID int64
	IndicatorID   int64
	ScoringID     int64
	AnalysisID    int64
	TotalSignals  int
	BuySignals    int
	SellSignals   int
	HoldSignals   int
	AvgScore      float64
	MaxScore      float64
	MinScore      float64
	DataInfo      map[string]interface{}
	Summary       map[string]interface{}
}

// UpsertResult stores an analysis result, replacing the row for the
// same (symbol, analysis_date, config ids). Returns the row id.
func (r *Repository) UpsertResult(tx *sql.Tx, res *Result) (int64, error) {
	dataInfo, err := json.Marshal(orEmpty(res.DataInfo))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal data_info: %w", err)
	}
	summary, err := json.Marshal(orEmpty(res.Summary))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal summary: %w", err)
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`
		INSERT INTO analysis_results
			(symbol, analysis_date, indicator_calculation_id,
			 indicator_config_id, scoring_config_id, analysis_config_id,
			 total_signals, buy_signals, sell_signals, hold_signals,
			 avg_score, max_score, min_score, data_info, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, analysis_date, indicator_config_id, scoring_config_id, analysis_config_id)
		DO UPDATE SET
			indicator_calculation_id = excluded.indicator_calculation_id,
			total_signals = excluded.total_signals,
			buy_signals = excluded.buy_signals,
			sell_signals = excluded.sell_signals,
			hold_signals = excluded.hold_signals,
			avg_score = excluded.avg_score,
			max_score = excluded.max_score,
			min_score = excluded.min_score,
			data_info = excluded.data_info,
			summary = excluded.summary`,
		res.Symbol, domain.DateString(res.Date), res.CalculationID,
		res.IndicatorID, res.ScoringID, res.AnalysisID,
		res.TotalSignals, res.BuySignals, res.SellSignals, res.HoldSignals,
		res.AvgScore, res.MaxScore, res.MinScore,
		string(dataInfo), string(summary), now)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert analysis result: %w", err)
	}

	var id int64
	err = tx.QueryRow(`
		SELECT id FROM analysis_results
		WHERE symbol = ? AND analysis_date = ?
		  AND indicator_config_id = ? AND scoring_config_id = ? AND analysis_config_id = ?`,
		res.Symbol, domain.DateString(res.Date),
		res.IndicatorID, res.ScoringID, res.AnalysisID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read analysis result id: %w", err)
	}
	return id, nil
}

// ReplaceSignals deletes any previous signal rows for the analysis
// result and inserts the new set, keeping re-analysis idempotent.
func (r *Repository) ReplaceSignals(tx *sql.Tx, resultID int64, sigs []signals.Signal) error {
	if _, err := tx.Exec(`DELETE FROM signal_results WHERE analysis_result_id = ?`, resultID); err != nil {
		return fmt.Errorf("failed to clear previous signals: %w", err)
	}

	if len(sigs) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO signal_results
			(analysis_result_id, symbol, signal_date, signal_time, action, strength,
			 score, description, triggered_rules, context, indicators_at_signal,
			 metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare signal insert: %w", err)
	}
	defer stmt.Close()

	now := r.clock.Now().UTC().Format(time.RFC3339)
	for _, sig := range sigs {
		rules, err := json.Marshal(sig.TriggeredRules)
		if err != nil {
			return fmt.Errorf("failed to marshal triggered rules: %w", err)
		}
		context, err := json.Marshal(sig.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal signal context: %w", err)
		}
		snapshot, err := json.Marshal(sig.Indicators)
		if err != nil {
			return fmt.Errorf("failed to marshal indicator snapshot: %w", err)
		}
		metadata, err := json.Marshal(map[string]interface{}{"raw_score": sig.RawScore})
		if err != nil {
			return fmt.Errorf("failed to marshal signal metadata: %w", err)
		}

		_, err = stmt.Exec(resultID, sig.Symbol,
			domain.DateString(sig.Time), sig.Time.UTC().Format(time.RFC3339),
			string(sig.Action), string(sig.Strength), sig.Score, sig.Description,
			string(rules), string(context), string(snapshot), string(metadata), now)
		if err != nil {
			return fmt.Errorf("failed to insert signal %s@%s: %w",
				sig.Symbol, domain.DateString(sig.Time), err)
		}
	}
	return nil
}

// SignalRow is a read-model row from signal_results.
type SignalRow struct {
	ID             int64
	Symbol         string
	Date           string
	Action         domain.Action
	Strength       domain.Strength
	Score          float64
	Description    string
	TriggeredRules string
	Context        string
}

// SignalsForResult returns the signal rows of an analysis result in
// date order.
func (r *Repository) SignalsForResult(resultID int64) ([]SignalRow, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, signal_date, action, strength, score, description,
		       triggered_rules, context
		FROM signal_results
		WHERE analysis_result_id = ?
		ORDER BY signal_date ASC, id ASC`, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	return scanSignalRows(rows)
}

// RecentSignals returns the latest signal rows for a symbol, newest
// first.
func (r *Repository) RecentSignals(symbol string, limit int) ([]SignalRow, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, signal_date, action, strength, score, description,
		       triggered_rules, context
		FROM signal_results
		WHERE symbol = ?
		ORDER BY signal_date DESC, id DESC
		LIMIT ?`, domain.NormalizeSymbol(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent signals: %w", err)
	}
	defer rows.Close()

	return scanSignalRows(rows)
}

func scanSignalRows(rows *sql.Rows) ([]SignalRow, error) {
	var out []SignalRow
	for rows.Next() {
		var s SignalRow
		var action, strength string
		err := rows.Scan(&s.ID, &s.Symbol, &s.Date, &action, &strength,
			&s.Score, &s.Description, &s.TriggeredRules, &s.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		s.Action = domain.Action(action)
		s.Strength = domain.Strength(strength)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return out, nil
}

// CountResults returns the number of analysis_results rows for a
// symbol and date, used to verify dedup behavior.
func (r *Repository) CountResults(symbol string, date time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM analysis_results WHERE symbol = ? AND analysis_date = ?`,
		symbol, domain.DateString(date)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count analysis results: %w", err)
	}
	return count, nil
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// handleHealth pings every database and reports per-database status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Databases))

	for _, db := range s.deps.Databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			checks[db.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[db.Name()] = "ok"
	}

	s.respondJSON(w, status, map[string]interface{}{
		"status":    healthWord(status),
		"databases": checks,
	})
}

func healthWord(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "unhealthy"
}

// handleStatus reports the pipeline state and per-symbol watermarks.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	watermarks, err := s.deps.Tracking.List()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"pipeline_running": s.deps.Runner.Running(),
		"watermarks":       watermarks,
	}
	if last := s.deps.Runner.LastReport(); last != nil {
		resp["last_run"] = map[string]interface{}{
			"run_id":        last.RunID,
			"target_date":   domain.DateString(last.TargetDate),
			"finished_at":   last.FinishedAt,
			"total_symbols": last.TotalSymbols,
			"succeeded":     last.Succeeded,
			"failed":        last.Failed,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleRun triggers a pipeline run in the background. Returns 409
// while a run is in flight.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner.Running() {
		s.respondError(w, http.StatusConflict, "a pipeline run is already in progress")
		return
	}

	target := s.deps.Clock.Now()
	go func() {
		if _, err := s.deps.Runner.Run(context.Background(), target); err != nil {
			s.log.Error().Err(err).Msg("Manual pipeline run failed")
		}
	}()

	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"target": domain.DateString(target),
	})
}

// handleReport returns the most recent run report, preferring the
// in-memory one and falling back to the persisted row.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if last := s.deps.Runner.LastReport(); last != nil {
		s.respondJSON(w, http.StatusOK, last)
		return
	}

	runs, err := s.deps.Runs.Latest(1)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(runs) == 0 {
		s.respondError(w, http.StatusNotFound, "no pipeline runs recorded")
		return
	}
	s.respondJSON(w, http.StatusOK, runs[0])
}

// handleReports lists persisted run reports, newest first.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	runs, err := s.deps.Runs.Latest(limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleSymbols lists the active universe.
func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.deps.Universe.ListActive()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"symbols": stocks})
}

type signalResponse struct {
	ID             int64           `json:"id"`
	Symbol         string          `json:"symbol"`
	Date           string          `json:"date"`
	Action         domain.Action   `json:"action"`
	Strength       domain.Strength `json:"strength"`
	Score          float64         `json:"score"`
	Description    string          `json:"description"`
	TriggeredRules json.RawMessage `json:"triggered_rules"`
	Context        json.RawMessage `json:"context"`
}

// handleSignals returns a symbol's most recent signals.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	limit := queryInt(r, "limit", 50)

	rows, err := s.deps.Analysis.RecentSignals(symbol, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]signalResponse, len(rows))
	for i, row := range rows {
		out[i] = signalResponse{
			ID:             row.ID,
			Symbol:         row.Symbol,
			Date:           row.Date,
			Action:         row.Action,
			Strength:       row.Strength,
			Score:          row.Score,
			Description:    row.Description,
			TriggeredRules: json.RawMessage(row.TriggeredRules),
			Context:        json.RawMessage(row.Context),
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  domain.NormalizeSymbol(symbol),
		"signals": out,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

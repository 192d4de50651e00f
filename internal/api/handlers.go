package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dan1elw/LARA/internal/analysis"
	"github.com/dan1elw/LARA/internal/report"
	"github.com/dan1elw/LARA/internal/storage/sqlite"
	"github.com/dan1elw/LARA/pkg/logger"
)

// FlightStore is the storage surface the API reads from.
type FlightStore interface {
	ListFlights(limit int) ([]sqlite.FlightRecord, error)
	GetFlight(id string) (sqlite.FlightRecord, error)
	GetPositions(flightID string) ([]sqlite.PositionRecord, error)
	LatestAnalysisRun() (*analysis.Result, error)
	DailyStats() ([]analysis.DailyStatistics, error)
}

// AnalysisRunner triggers a full analysis run over stored sessions.
type AnalysisRunner interface {
	Run(ctx context.Context) (*report.Report, error)
}

// WebSocketHandler upgrades live-update connections.
type WebSocketHandler interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
}

// Handler contains the API handlers
type Handler struct {
	store  FlightStore
	runner AnalysisRunner
	ws     WebSocketHandler
	logger *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(store FlightStore, runner AnalysisRunner, ws WebSocketHandler, log *logger.Logger) *Handler {
	return &Handler{
		store:  store,
		runner: runner,
		ws:     ws,
		logger: log.Named("api"),
	}
}

// GetFlights returns the most recent flights
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			WriteError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = parsed
	}

	flights, err := h.store.ListFlights(limit)
	if err != nil {
		h.logger.Error("Failed to list flights", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to list flights")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(flights),
		"flights": flights,
	})
}

// GetFlight returns one flight by session ID
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	flight, err := h.store.GetFlight(id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "flight not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get flight", logger.String("id", id), logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get flight")
		return
	}
	WriteJSON(w, http.StatusOK, flight)
}

// GetFlightPositions returns the stored track of one flight
func (h *Handler) GetFlightPositions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetFlight(id); errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "flight not found")
		return
	} else if err != nil {
		h.logger.Error("Failed to get flight", logger.String("id", id), logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get flight")
		return
	}

	positions, err := h.store.GetPositions(id)
	if err != nil {
		h.logger.Error("Failed to get positions", logger.String("id", id), logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get positions")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"flight_id": id,
		"count":     len(positions),
		"positions": positions,
	})
}

// GetAnalysis returns the latest stored analysis run as a report
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.LatestAnalysisRun()
	if errors.Is(err, sqlite.ErrNoAnalysisRun) {
		WriteError(w, http.StatusNotFound, "no analysis run available yet")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load analysis run", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to load analysis run")
		return
	}
	WriteJSON(w, http.StatusOK, report.Build(result))
}

// RunAnalysis triggers a fresh analysis run and returns its report
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rep, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("Analysis run failed", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "analysis run failed")
		return
	}
	h.logger.Info("Analysis run triggered via API",
		logger.String("run_id", rep.RunID),
		logger.Duration("duration", time.Since(start)))
	WriteJSON(w, http.StatusOK, rep)
}

// GetDailyStats returns the persisted per-day aggregates
func (h *Handler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	days, err := h.store.DailyStats()
	if err != nil {
		h.logger.Error("Failed to load daily stats", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to load daily stats")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"count": len(days),
		"daily": days,
	})
}

// Health reports service liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleWebSocket upgrades the connection for live updates
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.ws.HandleConnection(w, r)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

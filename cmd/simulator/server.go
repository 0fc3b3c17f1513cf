package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"enterprise_sim/internal/config"
	"enterprise_sim/internal/domain"
	"enterprise_sim/internal/enterprise"
	"enterprise_sim/internal/simulation"
	sqlitestore "enterprise_sim/internal/store/sqlite"
)

type journalReader interface {
	ListLogEntries(ctx context.Context, kind domain.LogKind, limit int) ([]domain.LogEntry, error)
	ListSamples(ctx context.Context, limit int) ([]sqlitestore.SampleRecord, error)
	CountLogEntries(ctx context.Context) (map[domain.LogKind]int, error)
}

type app struct {
	cfg     config.Config
	sim     *simulation.Service
	journal journalReader
	metrics http.Handler
}

func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /config", a.handleConfig)
	mux.HandleFunc("GET /snapshot", a.handleSnapshot)
	mux.HandleFunc("POST /outcomes", a.handleCreateOutcome)
	mux.HandleFunc("POST /simulation/toggle", a.handleToggle)
	mux.HandleFunc("POST /reset", a.handleReset)
	mux.HandleFunc("DELETE /tasks/{id}", a.handleDeleteTask)
	mux.HandleFunc("DELETE /predictions/{id}", a.handleDismissPrediction)
	mux.HandleFunc("GET /journal/logs", a.handleJournalLogs)
	mux.HandleFunc("GET /journal/counts", a.handleJournalCounts)
	mux.HandleFunc("GET /journal/samples", a.handleJournalSamples)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics)
	}
	return mux
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"simulating": a.sim.Simulating(),
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *app) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path":  a.cfg.Path,
		"found": a.cfg.Found,
		"raw":   a.cfg.Raw,
	})
}

func (a *app) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sim.Snapshot())
}

func (a *app) handleCreateOutcome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
		return
	}
	// a dropped client must not abort the advisory call already issued
	outcome, tasks, err := a.sim.RegisterOutcome(context.WithoutCancel(r.Context()), req.Title, req.Description)
	if errors.Is(err, simulation.ErrEmptyTitle) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"outcome": outcome,
		"tasks":   tasks,
	})
}

func (a *app) handleToggle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"simulating": a.sim.ToggleSimulation()})
}

func (a *app) handleReset(w http.ResponseWriter, _ *http.Request) {
	a.sim.ResetSystem()
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

func (a *app) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	err := a.sim.DeleteTask(r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, enterprise.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, enterprise.ErrTaskNotPending):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (a *app) handleDismissPrediction(w http.ResponseWriter, r *http.Request) {
	err := a.sim.DismissPrediction(r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, enterprise.ErrPredictionNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (a *app) handleJournalLogs(w http.ResponseWriter, r *http.Request) {
	kind, err := parseLogKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	items, err := a.journal.ListLogEntries(r.Context(), kind, queryInt(r, "limit", 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *app) handleJournalCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := a.journal.CountLogEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *app) handleJournalSamples(w http.ResponseWriter, r *http.Request) {
	items, err := a.journal.ListSamples(r.Context(), queryInt(r, "limit", 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func parseLogKind(raw string) (domain.LogKind, error) {
	kind := domain.LogKind(strings.ToUpper(strings.TrimSpace(raw)))
	switch kind {
	case "", domain.LogKindInfo, domain.LogKindNegotiation, domain.LogKindAlert, domain.LogKindSuccess, domain.LogKindExternal:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown log kind: %s", raw)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func durationMS(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func intOrDefault(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

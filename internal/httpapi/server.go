package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/netmon/internal/domain"
	apimw "github.com/hamed0406/netmon/internal/httpapi/middleware"
	"github.com/hamed0406/netmon/internal/probe"
	"github.com/hamed0406/netmon/internal/repo"
	"github.com/hamed0406/netmon/internal/scheduler"
	"github.com/hamed0406/netmon/internal/status"
)

const defaultHistoryLimit = 50

// Server is the read-only status surface of a running daemon.
type Server struct {
	Logger *zap.Logger
	Probes []probe.Probe
	Board  *status.Board

	// Optional.
	Samples  repo.SampleStore
	Alerts   repo.AlertStore
	Trigger  func(ctx context.Context) scheduler.CycleReport
	Gatherer prometheus.Gatherer
}

func NewServer(l *zap.Logger, probes []probe.Probe, board *status.Board) *Server {
	return &Server{Logger: l, Probes: probes, Board: board}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/checks", s.handleChecks)
		r.Get("/checks/{id}/history", s.handleHistory)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/alerts/history", s.handleAlertHistory)
		r.With(apimw.RequireAdmin(keys)).Post("/cycles", s.handleRunCycle)
	})
	return r
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status.Rows(s.Probes))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Board.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.Samples == nil {
		writeError(w, http.StatusNotImplemented, "no sample store configured")
		return
	}
	id := chi.URLParam(r, "id")
	if !s.known(id) {
		writeError(w, http.StatusNotFound, "unknown check")
		return
	}
	out, err := s.Samples.History(r.Context(), domain.ProbeID(id), limitParam(r))
	if err != nil {
		s.Logger.Warn("history_error", zap.String("probe_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, http.StatusNotImplemented, "no alert store configured")
		return
	}
	out, err := s.Alerts.Recent(r.Context(), limitParam(r))
	if err != nil {
		s.Logger.Warn("alert_history_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "alert history error")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

type cycleSummary struct {
	ID          string `json:"id"`
	Ran         int    `json:"ran"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	Escalations int    `json:"escalations"`
	Notified    int    `json:"notified"`
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if s.Trigger == nil {
		writeError(w, http.StatusNotImplemented, "manual cycles disabled")
		return
	}
	rep := s.Trigger(r.Context())
	s.Logger.Info("manual_cycle", zap.String("cycle", rep.ID), zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusOK, cycleSummary{
		ID:          rep.ID,
		Ran:         rep.Ran,
		Skipped:     rep.Skipped,
		Failed:      rep.Failed,
		Escalations: len(rep.Escalations),
		Notified:    rep.Notified,
	})
}

func (s *Server) known(id string) bool {
	for _, p := range s.Probes {
		if p.ID() == id {
			return true
		}
	}
	return false
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultHistoryLimit
	}
	if n > 1000 {
		n = 1000
	}
	return n
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

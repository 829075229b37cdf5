package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/delivery/http/response"
	"github.com/user/adarchive-ingest/internal/repository"
)

// Pinger is the slice of the database pool the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	stats repository.StatsRepository
	db    Pinger
	log   *zap.Logger
}

func NewHandler(stats repository.StatsRepository, db Pinger, log *zap.Logger) *Handler {
	return &Handler{
		stats: stats,
		db:    db,
		log:   log,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := response.HealthResponse{Status: "ok", Postgres: "ok"}
	code := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.Warn("health check: postgres unreachable", zap.Error(err))
		resp.Status = "degraded"
		resp.Postgres = "unreachable"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, resp)
}

func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Snapshot(r.Context())
	if err != nil {
		h.log.Error("failed to snapshot pipeline stats", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.StatusResponse{
		Terms:          stats.Terms,
		PagesAds:       stats.PagesAds,
		PagesMedia:     stats.PagesMedia,
		LeasableTokens: stats.LeasableTokens,
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

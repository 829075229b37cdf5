package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/delivery/http/response"
	"github.com/user/adarchive-ingest/internal/entity"
)

type stubStats struct {
	stats *entity.PipelineStats
	err   error
}

func (s *stubStats) Snapshot(ctx context.Context) (*entity.PipelineStats, error) {
	return s.stats, s.err
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHandleHealthCheck(t *testing.T) {
	h := NewHandler(&stubStats{}, &stubPinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp response.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleHealthCheckDegraded(t *testing.T) {
	h := NewHandler(&stubStats{}, &stubPinger{err: errors.New("connection refused")}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp response.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unreachable", resp.Postgres)
}

func TestHandleGetStatus(t *testing.T) {
	h := NewHandler(&stubStats{stats: &entity.PipelineStats{
		Terms:          map[string]int64{"completed": 4, "pending": 1},
		PagesAds:       map[string]int64{"completed": 10},
		PagesMedia:     map[string]int64{"completed": 7, "crashed": 1},
		LeasableTokens: 3,
	}}, &stubPinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleGetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp response.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.Terms["completed"])
	assert.Equal(t, int64(1), resp.PagesMedia["crashed"])
	assert.Equal(t, 3, resp.LeasableTokens)
}

func TestHandleGetStatusStoreFailure(t *testing.T) {
	h := NewHandler(&stubStats{err: errors.New("db down")}, &stubPinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleGetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

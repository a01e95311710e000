package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler(time.Second)
	h.Register("redis", func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode(t, rec)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadinessHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		setup      func(h *Handler)
		wantCode   int
		wantStatus Status
	}{
		{"all healthy", func(h *Handler) {
			h.Register("redis", ok)
			h.Register("postgres", ok)
		}, http.StatusOK, StatusUp},
		{"critical down", func(h *Handler) {
			h.Register("redis", fail)
			h.Register("postgres", ok)
		}, http.StatusServiceUnavailable, StatusDown},
		{"non-critical down", func(h *Handler) {
			h.Register("redis", ok)
			h.RegisterNonCritical("kafka", fail)
		}, http.StatusOK, StatusDegraded},
		{"no checks", func(*Handler) {}, http.StatusOK, StatusUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(time.Second)
			tt.setup(h)

			rec := httptest.NewRecorder()
			h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, decode(t, rec).Status)
		})
	}
}

func TestCheck_ReportsErrorAndCriticality(t *testing.T) {
	h := NewHandler(time.Second)
	h.RegisterNonCritical("peer", func(context.Context) error { return errors.New("breaker open") })

	resp := h.Check(context.Background())
	require.Contains(t, resp.Checks, "peer")
	assert.Equal(t, "breaker open", resp.Checks["peer"].Error)
	assert.False(t, resp.Checks["peer"].Critical)
}

func TestCheck_AppliesTimeout(t *testing.T) {
	h := NewHandler(20 * time.Millisecond)
	h.Register("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	resp := h.Check(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusDown, resp.Status)
}

func TestNames_Sorted(t *testing.T) {
	h := NewHandler(0)
	h.Register("redis", nil)
	h.RegisterNonCritical("kafka", nil)
	h.Register("postgres", nil)
	assert.Equal(t, []string{"kafka", "postgres", "redis"}, h.Names())
}

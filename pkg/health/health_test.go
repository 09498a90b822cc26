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

func up(context.Context) error { return nil }

func down(msg string) Checker {
	return func(context.Context) error { return errors.New(msg) }
}

func ready(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down("connection refused"))

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name        string
		critical    map[string]Checker
		nonCritical map[string]Checker
		wantCode    int
		wantStatus  Status
	}{
		{name: "no checks", wantCode: http.StatusOK, wantStatus: StatusUp},
		{
			name:        "all up",
			critical:    map[string]Checker{"postgres": up},
			nonCritical: map[string]Checker{"kafka": up, "redis": up},
			wantCode:    http.StatusOK,
			wantStatus:  StatusUp,
		},
		{
			name:        "kafka down degrades",
			critical:    map[string]Checker{"postgres": up},
			nonCritical: map[string]Checker{"kafka": down("broker unreachable")},
			wantCode:    http.StatusOK,
			wantStatus:  StatusDegraded,
		},
		{
			name:        "postgres down is unready",
			critical:    map[string]Checker{"postgres": down("connection refused")},
			nonCritical: map[string]Checker{"kafka": down("broker unreachable")},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			for name, fn := range tt.critical {
				h.RegisterCritical(name, fn)
			}
			for name, fn := range tt.nonCritical {
				h.RegisterNonCritical(name, fn)
			}

			code, resp := ready(t, h)

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, len(tt.critical)+len(tt.nonCritical))
		})
	}
}

func TestReadinessHandler_ReportsEachCheck(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", up)
	h.RegisterNonCritical("redis", down("redis down"))

	_, resp := ready(t, h)

	assert.Equal(t, StatusUp, resp.Checks["postgres"].Status)
	assert.True(t, resp.Checks["postgres"].Critical)
	assert.Empty(t, resp.Checks["postgres"].Error)
	assert.Equal(t, StatusDown, resp.Checks["redis"].Status)
	assert.False(t, resp.Checks["redis"].Critical)
	assert.Equal(t, "redis down", resp.Checks["redis"].Error)
}

func TestReadinessHandler_CheckTimeout(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("kafka", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	code, resp := ready(t, h)

	assert.Less(t, time.Since(start), checkTimeout+time.Second)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Contains(t, resp.Checks["kafka"].Error, "deadline exceeded")
}

func TestReadinessHandler_Draining(t *testing.T) {
	h := NewHandler()
	called := false
	h.RegisterCritical("postgres", func(context.Context) error {
		called = true
		return nil
	})
	h.SetDraining()

	code, resp := ready(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusDraining, resp.Status)
	assert.False(t, called)
}

package maintenance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desa-portal/internal/observability"
	"desa-portal/internal/ratelimit"
)

func newSweepHandler(t *testing.T, secret string) (*SweepHandler, *ratelimit.Limiter) {
	t.Helper()

	clock := time.Now().UTC()
	limiter, err := ratelimit.New(1, time.Nanosecond, ratelimit.WithClock(func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}))
	require.NoError(t, err)

	handler := NewSweepHandler(
		map[string]*ratelimit.Limiter{"api": limiter},
		observability.NewLogger(),
		secret,
	)
	return handler, limiter
}

func TestSweepHandler_DisabledWithoutSecret(t *testing.T) {
	handler, _ := newSweepHandler(t, "")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/sweep", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweepHandler_RejectsWrongSecret(t *testing.T) {
	handler, _ := newSweepHandler(t, "cron-secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/sweep", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSweepHandler_SweepsAndReports(t *testing.T) {
	handler, limiter := newSweepHandler(t, "cron-secret")

	limiter.Check("stale-client")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/sweep", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string         `json:"status"`
		Removed map[string]int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Removed["api"])
}

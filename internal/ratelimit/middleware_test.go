package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(handler http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/news", nil)
	req.RemoteAddr = remoteAddr
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_AllowSetsObservabilityHeaders(t *testing.T) {
	limiter, err := New(5, time.Minute)
	require.NoError(t, err)
	handler := Middleware(limiter, nil)(okHandler())

	rec := doRequest(handler, "10.0.0.1:1234", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))

	reset, err := time.Parse(time.RFC3339, rec.Header().Get("X-RateLimit-Reset"))
	require.NoError(t, err)
	assert.True(t, reset.After(time.Now().UTC()))
}

func TestMiddleware_RejectsWithRetryAfter(t *testing.T) {
	limiter, err := New(2, time.Minute)
	require.NoError(t, err)
	handler := Middleware(limiter, nil)(okHandler())

	doRequest(handler, "10.0.0.1:1234", nil)
	doRequest(handler, "10.0.0.1:1234", nil)
	rec := doRequest(handler, "10.0.0.1:1234", nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60)

	_, err = time.Parse(time.RFC3339, rec.Header().Get("X-RateLimit-Reset"))
	assert.NoError(t, err)
}

func TestMiddleware_SeparateClientsSeparateBudgets(t *testing.T) {
	limiter, err := New(1, time.Minute)
	require.NoError(t, err)
	handler := Middleware(limiter, nil)(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.2:1", nil).Code)
}

func TestMiddleware_CustomIdentifier(t *testing.T) {
	limiter, err := New(1, time.Minute)
	require.NoError(t, err)

	byAPIKey := func(r *http.Request) string { return r.Header.Get("X-API-Key") }
	handler := Middleware(limiter, byAPIKey)(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1", map[string]string{"X-API-Key": "k1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.2:1", map[string]string{"X-API-Key": "k1"}).Code)
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1", map[string]string{"X-API-Key": "k2"}).Code)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"forwarded-for first hop", "10.0.0.9:1", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real-ip fallback", "10.0.0.9:1", map[string]string{"X-Real-IP": "203.0.113.8"}, "203.0.113.8"},
		{"remote addr fallback", "10.0.0.9:1", nil, "10.0.0.9:1"},
		{"unknown fallback", "", nil, "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for name, value := range tc.headers {
				req.Header.Set(name, value)
			}

			assert.Equal(t, tc.want, ClientIP(req))
		})
	}
}

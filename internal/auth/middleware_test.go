package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(claims.Identity.ID))
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	tokens := newTestTokenService(t, "test-secret")
	handler := Middleware(tokens, false)(protectedEcho(t))

	access, err := tokens.IssueAccessToken(testIdentity(), 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testIdentity().ID, rec.Body.String())
}

func TestMiddleware_MissingCookie(t *testing.T) {
	tokens := newTestTokenService(t, "test-secret")
	handler := Middleware(tokens, false)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_missing", authErrorCode(t, rec))
}

func TestMiddleware_ExpiredTokenKeepsCookies(t *testing.T) {
	now := time.Now().UTC()
	tokens := newTestTokenService(t, "test-secret").WithClock(func() time.Time { return now })
	handler := Middleware(tokens, false)(protectedEcho(t))

	access, err := tokens.IssueAccessToken(testIdentity(), time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_expired", authErrorCode(t, rec))
	// Expired is recoverable through the refresh flow; cookies stay.
	assert.Empty(t, rec.Result().Cookies())
}

func TestMiddleware_InvalidTokenClearsCookies(t *testing.T) {
	tokens := newTestTokenService(t, "test-secret")
	forged := newTestTokenService(t, "other-secret")
	handler := Middleware(tokens, false)(protectedEcho(t))

	access, err := forged.IssueAccessToken(testIdentity(), 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_invalid", authErrorCode(t, rec))
	assertSessionCleared(t, rec.Result().Cookies())
}

func TestRequireRole(t *testing.T) {
	tokens := newTestTokenService(t, "test-secret")

	cases := []struct {
		name string
		role string
		want int
	}{
		{"admin allowed", RoleAdmin, http.StatusOK},
		{"user forbidden", RoleUser, http.StatusForbidden},
		// Unknown roles are rejected, never treated as privileged.
		{"unknown role forbidden", "superuser", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity := testIdentity()
			identity.Role = tc.role

			access, err := tokens.IssueAccessToken(identity, 0)
			require.NoError(t, err)

			chain := Middleware(tokens, false)(RequireRole(RoleAdmin)(protectedEcho(t)))

			req := httptest.NewRequest(http.MethodPost, "/news", nil)
			req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
			rec := httptest.NewRecorder()
			chain.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func authErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["code"]
}

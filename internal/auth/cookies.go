package auth

import (
	"net/http"
	"time"
)

// Cookie names are a contract with the browser client and must not change.
const (
	AccessCookieName  = "token"
	RefreshCookieName = "refreshToken"
)

func sessionCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetSessionCookies writes both auth cookies in one response. They are always
// set together; a partially updated cookie pair leaves the client in an
// inconsistent state.
func SetSessionCookies(w http.ResponseWriter, pair TokenPair, secure bool) {
	http.SetCookie(w, sessionCookie(AccessCookieName, pair.AccessToken, int(pair.AccessTTL.Seconds()), secure))
	http.SetCookie(w, sessionCookie(RefreshCookieName, pair.RefreshToken, int(pair.RefreshTTL.Seconds()), secure))
}

// ClearSessionCookies expires both auth cookies.
func ClearSessionCookies(w http.ResponseWriter, secure bool) {
	expired := func(name string) *http.Cookie {
		c := sessionCookie(name, "", -1, secure)
		c.Expires = time.Unix(0, 0)
		return c
	}
	http.SetCookie(w, expired(AccessCookieName))
	http.SetCookie(w, expired(RefreshCookieName))
}

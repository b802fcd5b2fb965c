package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers signature mismatch, malformed tokens, wrong
	// token type and missing required claims. Callers must treat the
	// session as unauthenticated and clear both cookies.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired means the signature checked out but the expiry has
	// passed. Callers may attempt the refresh flow exactly once.
	ErrTokenExpired = errors.New("token expired")

	ErrRefreshInvalid = errors.New("invalid refresh token")
	ErrRefreshExpired = errors.New("refresh token expired")
)

// Identity is the claims payload shared by access and refresh tokens.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type Claims struct {
	Identity
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a login or a refresh. TTLs are reported so
// callers can set cookie max-age to the exact token lifetime.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// TokenService signs and verifies the portal's access/refresh tokens. It is
// the only component that touches the signing secret.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token service: signing secret is not configured")
	}
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock replaces the service clock. Test use only.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// issueToken signs a token of the given type and TTL. Pure function of
// identity, secret and clock.
func (s *TokenService) issueToken(identity Identity, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Identity:  identity,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

func (s *TokenService) IssueAccessToken(identity Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.accessTTL
	}
	return s.issueToken(identity, tokenTypeAccess, ttl)
}

// IssueTokenPair mints a short-lived access token and a long-lived refresh
// token from the same identity.
func (s *TokenService) IssueTokenPair(identity Identity) (TokenPair, error) {
	access, err := s.issueToken(identity, tokenTypeAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.issueToken(identity, tokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    s.accessTTL,
		RefreshTTL:   s.refreshTTL,
	}, nil
}

func (s *TokenService) parse(tokenStr, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		// Expired must be reported distinctly: it triggers the refresh
		// flow, while any other failure forces a logout.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != wantType {
		return nil, ErrTokenInvalid
	}
	if claims.RegisteredClaims.ID == "" || claims.Identity.ID == "" || claims.Role == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Verify checks an access token and returns its claims. Fails with
// ErrTokenExpired when only the expiry has passed, ErrTokenInvalid otherwise.
// A refresh token is never accepted here.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	return s.parse(tokenStr, tokenTypeAccess)
}

// Refresh verifies a refresh token and rotates it: a brand-new access/refresh
// pair is minted from the same identity with fresh jti/iat/exp, so the
// returned refresh token always differs from the input. The superseded token
// stays cryptographically verifiable until its own expiry; there is no
// server-side revocation store.
func (s *TokenService) Refresh(refreshTokenStr string) (TokenPair, error) {
	claims, err := s.parse(refreshTokenStr, tokenTypeRefresh)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return TokenPair{}, ErrRefreshExpired
		}
		return TokenPair{}, ErrRefreshInvalid
	}

	return s.IssueTokenPair(claims.Identity)
}

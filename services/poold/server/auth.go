package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig configures the operator credentials accepted on mutating routes.
// Static bearer tokens and an HS256 JWT secret may be combined.
type AuthConfig struct {
	BearerTokens []string
	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	Leeway       time.Duration
}

// Authenticator verifies operator requests before they reach handlers.
type Authenticator struct {
	bearerTokens [][]byte
	jwtSecret    []byte
	issuer       string
	audience     string
	leeway       time.Duration
	now          func() time.Time
}

// Principal describes an authenticated operator.
type Principal struct {
	Method  string
	Subject string
}

type principalContextKey struct{}

// PrincipalFromContext extracts the authenticated principal from the request context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// NewAuthenticator constructs an authenticator from configuration.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	var tokens [][]byte
	for _, token := range cfg.BearerTokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, []byte(trimmed))
		}
	}
	secret := strings.TrimSpace(cfg.JWTSecret)
	if len(tokens) == 0 && secret == "" {
		return nil, fmt.Errorf("at least one authentication mechanism must be configured")
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("jwt leeway must not be negative")
	}
	a := &Authenticator{
		bearerTokens: tokens,
		issuer:       strings.TrimSpace(cfg.JWTIssuer),
		audience:     strings.TrimSpace(cfg.JWTAudience),
		leeway:       cfg.Leeway,
		now:          time.Now,
	}
	if secret != "" {
		a.jwtSecret = []byte(secret)
	}
	return a, nil
}

// SetNow overrides the clock used for token expiry checks.
func (a *Authenticator) SetNow(now func() time.Time) {
	if a != nil && now != nil {
		a.now = now
	}
}

// Middleware enforces authentication for operator endpoints.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			writeError(w, http.StatusServiceUnavailable, "authentication unavailable")
			return
		}
		principal, ok := a.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*Principal, bool) {
	token := parseBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil, false
	}
	for _, expected := range a.bearerTokens {
		if subtle.ConstantTimeCompare([]byte(token), expected) == 1 {
			return &Principal{Method: "bearer"}, true
		}
	}
	if len(a.jwtSecret) > 0 {
		subject, err := a.verifyJWT(token)
		if err == nil {
			return &Principal{Method: "jwt", Subject: subject}, true
		}
	}
	return nil, false
}

func (a *Authenticator) verifyJWT(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return a.now() }),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	if a.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(a.leeway))
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("token validation failed")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("token subject missing")
	}
	return subject, nil
}

func parseBearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

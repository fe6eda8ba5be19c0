package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/repcoach/internal/config"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
	Source string    `json:"source"`
}

const (
	sourceAccessToken = "access_token"
	sourceSentinel    = "sentinel"
)

type identityKey struct{}

// IdentityFromContext returns the identity placed by SessionCookies.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != uuid.Nil
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// tokenClaims are the claims read from access tokens and written to the sentinel.
type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func parseToken(raw string, secret []byte) (tokenClaims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return tokenClaims{}, err
	}
	if claims.Subject == "" {
		return tokenClaims{}, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

func identityFromClaims(c tokenClaims, source string) (Identity, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("subject is not a UUID: %w", err)
	}
	return Identity{UserID: id, Role: c.Role, Source: source}, nil
}

// cookieAuth holds the cookie names and keys SessionCookies works with.
type cookieAuth struct {
	cfg            config.AuthConfig
	jwtSecret      []byte
	sentinelSecret []byte
	log            *slog.Logger
	now            func() time.Time
}

func newCookieAuth(cfg config.AuthConfig, log *slog.Logger) *cookieAuth {
	return &cookieAuth{
		cfg:            cfg,
		jwtSecret:      []byte(cfg.JWTSecret),
		sentinelSecret: []byte(cfg.SentinelSecret),
		log:            log,
		now:            time.Now,
	}
}

// SessionCookies establishes the caller's identity and hardens auth cookies.
//
// A valid access token cookie from the identity provider is re-emitted (with the
// refresh cookie) as HttpOnly, Secure, SameSite=Strict, and a signed sentinel
// cookie is issued. Without an access token a valid sentinel alone identifies
// the caller. Invalid sentinels are cleared.
func SessionCookies(cfg config.AuthConfig, log *slog.Logger) func(http.Handler) http.Handler {
	return newCookieAuth(cfg, log).middleware
}

func (a *cookieAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := a.fromAccessToken(w, r); ok {
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
			return
		}
		if id, ok := a.fromSentinel(w, r); ok {
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *cookieAuth) fromAccessToken(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	c, err := r.Cookie(a.cfg.AccessCookie)
	if err != nil || c.Value == "" {
		return Identity{}, false
	}
	claims, err := parseToken(c.Value, a.jwtSecret)
	if err != nil {
		a.log.Debug("rejecting access token", "error", err)
		return Identity{}, false
	}
	id, err := identityFromClaims(claims, sourceAccessToken)
	if err != nil {
		a.log.Debug("rejecting access token", "error", err)
		return Identity{}, false
	}

	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	http.SetCookie(w, a.hardened(a.cfg.AccessCookie, c.Value, expires))
	if rc, err := r.Cookie(a.cfg.RefreshCookie); err == nil && rc.Value != "" {
		http.SetCookie(w, a.hardened(a.cfg.RefreshCookie, rc.Value, time.Time{}))
	}

	sentinel, expiresAt, err := a.mintSentinel(id)
	if err != nil {
		a.log.Error("minting session sentinel", "error", err)
		return id, true
	}
	http.SetCookie(w, a.hardened(a.cfg.SentinelCookie, sentinel, expiresAt))
	return id, true
}

func (a *cookieAuth) fromSentinel(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	c, err := r.Cookie(a.cfg.SentinelCookie)
	if err != nil || c.Value == "" {
		return Identity{}, false
	}
	claims, err := parseToken(c.Value, a.sentinelSecret)
	if err == nil {
		var id Identity
		if id, err = identityFromClaims(claims, sourceSentinel); err == nil {
			return id, true
		}
	}
	a.log.Debug("clearing invalid session sentinel", "error", err)
	expired := a.hardened(a.cfg.SentinelCookie, "", time.Time{})
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	return Identity{}, false
}

func (a *cookieAuth) mintSentinel(id Identity) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.cfg.SentinelTTL)
	claims := tokenClaims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.sentinelSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// hardened builds a cookie with the attributes every auth cookie carries.
func (a *cookieAuth) hardened(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !a.cfg.InsecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
	if !expires.IsZero() {
		c.Expires = expires
		c.MaxAge = int(expires.Sub(a.now()).Seconds())
		if c.MaxAge <= 0 {
			c.MaxAge = -1
		}
	}
	return c
}

// RequireSession rejects requests without an identity.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

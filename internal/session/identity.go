/**
 * @description
 * This package builds the caller's Identity from the bearer token on each
 * request and carries it through context.Context. There is no process-wide
 * token store: every handler sees exactly the token its request arrived with.
 *
 * @notes
 * - Signatures are not checked here. The booking backends hold the signing
 *   keys and verify every forwarded token; this service only reads the
 *   subject and expiry so it can scope views and fail fast on stale tokens.
 */

package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingToken = errors.New("authorization token required")
	ErrMalformed    = errors.New("invalid authorization header format")
	ErrExpired      = errors.New("token has expired")
)

// Identity is the authenticated caller of one request.
type Identity struct {
	Token     string
	Subject   string
	ExpiresAt time.Time
}

// IsZero reports whether no identity is present.
func (i Identity) IsZero() bool {
	return i.Token == ""
}

// FromHeader parses an Authorization header value of the form "Bearer <token>".
func FromHeader(header string, now time.Time) (Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Identity{}, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return Identity{}, ErrMalformed
	}
	return FromBearer(token, now)
}

// FromBearer builds an Identity from a raw bearer token. JWTs contribute their
// subject and expiry; opaque tokens are identified by a fingerprint.
func FromBearer(token string, now time.Time) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	identity := Identity{Token: token, Subject: fingerprint(token)}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return identity, nil
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
		if !now.Before(exp.Time) {
			return Identity{}, ErrExpired
		}
	}
	if sub, err := claims.GetSubject(); err == nil && strings.TrimSpace(sub) != "" {
		identity.Subject = sub
	} else if email, ok := claims["email"].(string); ok && strings.TrimSpace(email) != "" {
		identity.Subject = email
	}
	return identity, nil
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:8])
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok && !identity.IsZero()
}

// Middleware rejects requests without a usable bearer token and stores the
// caller's Identity in the request context.
func Middleware(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := FromHeader(r.Header.Get("Authorization"), now())
			if err != nil {
				logrus.WithFields(logrus.Fields{"component": "session", "path": r.URL.Path}).
					WithError(err).Debug("request rejected")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":  "Please log in to continue.",
					"detail": err.Error(),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

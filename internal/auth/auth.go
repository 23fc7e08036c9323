// Package auth carries the authenticated principal through the request
// context. Real credential verification is an external collaborator; only
// the boundary interface and a development stand-in live here.
package auth

import (
	"context"
	"crypto/hmac"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned for missing or unverifiable credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier turns a bearer token into a user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type contextKey struct{}

// UserID returns the authenticated user id stored by Middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// WithUserID returns a context carrying the given principal. Exposed for
// handler tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// Middleware extracts the bearer token, verifies it, and stores the
// resulting user id in the request context. Requests without a valid
// credential are rejected with 401.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// StaticVerifier is the development stand-in for the external auth
// collaborator. It accepts tokens of the form "<user-id>:<shared-secret>".
type StaticVerifier struct {
	Secret string
}

// Verify checks the shared secret and returns the embedded user id.
func (v StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	idx := strings.LastIndex(token, ":")
	if idx <= 0 {
		return "", ErrUnauthenticated
	}
	userID, secret := token[:idx], token[idx+1:]
	if v.Secret == "" || !hmac.Equal([]byte(secret), []byte(v.Secret)) {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

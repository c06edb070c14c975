// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const subjectKey ContextKey = "subject"

// ErrNoSubject is returned by Subject for unauthenticated requests.
var ErrNoSubject = errors.New("no authenticated subject in request context")

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (SubjectGetter, error)
}

// SubjectGetter exposes the principal a token was issued to.
type SubjectGetter interface {
	GetSubject() (string, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token and stores the token subject in the request context. A nil
// validator disables the check.
func RequireBearer(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				unauthorized(w)
				return
			}
			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken parses "Bearer <token>" with a case-insensitive scheme.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="job-radar"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}

// Subject returns the authenticated subject of the request.
func Subject(r *http.Request) (string, error) {
	sub, ok := r.Context().Value(subjectKey).(string)
	if !ok || sub == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}

// WithSubject returns ctx carrying sub, for handlers under test.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey, sub)
}

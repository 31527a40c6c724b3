// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// principalKey is the context key for the authenticated user.
const principalKey ContextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       uuid.UUID
	Username string
}

// TokenValidator validates a bearer token and returns the subject it was issued for.
type TokenValidator interface {
	ValidateToken(tokenString string) (SubjectGetter, error)
}

// SubjectGetter exposes the subject claim of a validated token.
type SubjectGetter interface {
	GetSubject() (string, error)
}

// UserResolver looks up the account behind a token subject. It returns nil, nil when the
// account no longer exists.
type UserResolver interface {
	ResolveUser(ctx context.Context, username string) (*Principal, error)
}

// AuthMiddleware validates the bearer token, resolves the user it names and stores the
// principal in the request context. Any failure ends the request with 401, except a
// resolver error, which is a 500.
func AuthMiddleware(tokens TokenValidator, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "Not authenticated")
				return
			}

			claims, err := tokens.ValidateToken(tokenString)
			if err != nil {
				unauthorized(w, "Could not validate token")
				return
			}

			username, err := claims.GetSubject()
			if err != nil || username == "" {
				unauthorized(w, "Invalid token")
				return
			}

			principal, err := users.ResolveUser(r.Context(), username)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}
			if principal == nil {
				unauthorized(w, "User not found")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken parses an Authorization header. The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// PrincipalFrom returns the authenticated user stored by AuthMiddleware.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// WithPrincipal returns a copy of ctx carrying p. Handlers tested without the middleware use it.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

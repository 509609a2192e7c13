package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/visadesk/visadesk/internal/platform/httpx"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// Verifier resolves a bearer token into a principal.
type Verifier interface {
	Verify(token string) (*Principal, error)
}

// Middleware wires authentication and authorization helpers for HTTP handlers.
type Middleware struct {
	Verifier Verifier
	Logger   *slog.Logger
}

// Authenticate resolves the bearer token into a principal. Requests without a
// valid token are rejected; there is no anonymous fallback.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := RequestToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		p, err := m.Verifier.Verify(token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("authz verify token", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireAny ensures the current principal has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.require(normalized, func(p *Principal) bool {
		return len(normalized) == 0 || AllowsAny(p, normalized...)
	})
}

// RequireAll ensures the current principal has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.require(normalized, func(p *Principal) bool {
		return AllowsAll(p, normalized...)
	})
}

func (m Middleware) require(perms []string, check func(*Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			if !check(p) {
				if m.Logger != nil {
					m.Logger.Info("authz denied",
						slog.String("principal", p.ID),
						slog.String("role", string(p.Role)),
						slog.String("required", strings.Join(perms, ",")))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestToken reads the bearer token from the Authorization header, falling
// back to the token query parameter used by EventSource clients.
func RequestToken(r *http.Request) (string, bool) {
	if token, ok := BearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	return token, token != ""
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}

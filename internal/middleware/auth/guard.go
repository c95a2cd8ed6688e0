// Package auth is the access guard: it admits allow-listed paths and requires
// a valid bearer token everywhere else.
package auth

import (
	"context"
	"net/http"
	"strings"

	"budgettracker/internal/auth"
	"budgettracker/internal/core"
	"budgettracker/internal/log"
)

type contextKey struct{}

// Verifier validates a bearer token and returns its claims.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Rule exempts a path from authentication. A prefix rule covers the path
// itself and everything below it.
type Rule struct {
	Path   string
	Prefix bool
}

func Exact(path string) Rule   { return Rule{Path: path} }
func Subtree(path string) Rule { return Rule{Path: strings.TrimSuffix(path, "/"), Prefix: true} }

type AllowList []Rule

// Allows reports whether path is exempt.
func (a AllowList) Allows(path string) bool {
	for _, rule := range a {
		if path == rule.Path {
			return true
		}
		if rule.Prefix && strings.HasPrefix(path, rule.Path+"/") {
			return true
		}
	}
	return false
}

// OnReject writes the response for a rejected request.
type OnReject func(w http.ResponseWriter, r *http.Request, err error)

type Guard struct {
	verifier Verifier
	allow    AllowList
	reject   OnReject
	logger   *log.Logger
}

func NewGuard(verifier Verifier, allow AllowList, reject OnReject, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.Discard()
	}
	if reject == nil {
		reject = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}
	return &Guard{
		verifier: verifier,
		allow:    allow,
		reject:   reject,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.allow.Allows(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := BearerToken(r)
		if !ok {
			g.reject(w, r, core.ErrUnauthorized)
			return
		}

		claims, err := g.verifier.Verify(token)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Token rejected",
				log.FieldPath, r.URL.Path,
				log.FieldError, err)
			g.reject(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*auth.Claims)
	return c, ok
}

// RequireRole wraps h so only callers holding one of roles reach it.
func RequireRole(h http.Handler, reject OnReject, roles ...core.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			reject(w, r, core.ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				h.ServeHTTP(w, r)
				return
			}
		}
		reject(w, r, core.ErrForbidden)
	})
}

package middleware

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/kbsearch/internal/api"
	"github.com/cloo-solutions/kbsearch/internal/domain"
)

type contextKey string

const (
	RoleKey contextKey = "role"

	// RoleHeader carries the caller's role, set by the upstream gateway.
	RoleHeader = "X-User-Role"
)

// Role resolves the caller's role from RoleHeader. Requests without a valid
// role are rejected with 401.
func Role(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(RoleHeader)
		if raw == "" {
			api.Error(w, http.StatusUnauthorized, "missing role header")
			return
		}

		role, err := domain.ParseRole(raw)
		if err != nil {
			api.Error(w, http.StatusUnauthorized, "invalid role")
			return
		}

		ctx := context.WithValue(r.Context(), RoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireEditor lets only roles that can edit content through.
func RequireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetRole(r.Context()).CanEditContent() {
			api.HandleError(w, domain.ErrForbiddenRole)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetRole returns the resolved role, or "" outside the Role middleware.
func GetRole(ctx context.Context) domain.Role {
	role, _ := ctx.Value(RoleKey).(domain.Role)
	return role
}

// WithRole returns a context carrying role, as the Role middleware would.
func WithRole(ctx context.Context, role domain.Role) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

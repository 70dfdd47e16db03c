package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/newdo/backend/internal/models"
)

type contextKey string

const ctxUserKey contextKey = "user"

// UserLookup resolves the request's user id to a user record.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ResolveUser identifies the caller from the X-User-ID header and sets
// the user into request context. This is the seam a real session layer
// plugs into; the lifecycle code only ever sees a resolved user.
func ResolveUser(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-User-ID")
			if raw == "" {
				http.Error(w, `{"error":"missing X-User-ID header"}`, http.StatusUnauthorized)
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, `{"error":"invalid X-User-ID header"}`, http.StatusUnauthorized)
				return
			}

			user, err := users.GetByID(r.Context(), id)
			if err != nil {
				http.Error(w, `{"error":"unknown user"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromCtx returns the resolved user or nil.
func UserFromCtx(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxUserKey).(*models.User)
	return u
}

// WithUser returns a context carrying the given user.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

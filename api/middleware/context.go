package middleware

import (
	"context"

	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

type (
	userIDKey struct{}
	roleKey   struct{}
)

// UserIDFromContext returns the authenticated user id, or 0 for anonymous requests.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := valueOf[int64](ctx, userIDKey{})
	return id
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	role, _ := valueOf[enums.UserRole](ctx, roleKey{})
	return role
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(orBackground(ctx), userIDKey{}, userID)
}

func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	return context.WithValue(orBackground(ctx), roleKey{}, role)
}

func valueOf[T any](ctx context.Context, key any) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

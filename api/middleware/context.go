package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type callerKey struct{}

type caller struct {
	userID string
	role   enums.Role
}

func withCaller(ctx context.Context, c caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func callerFrom(ctx context.Context) caller {
	c, _ := ctx.Value(callerKey{}).(caller)
	return c
}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	return callerFrom(ctx).userID
}

func RoleFromContext(ctx context.Context) string {
	return string(callerFrom(ctx).role)
}

// WithCaller seeds ctx as if Auth had run. Controllers' tests use it.
func WithCaller(ctx context.Context, userID string, role enums.Role) context.Context {
	return withCaller(ctx, caller{userID: userID, role: role})
}

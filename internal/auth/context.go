package auth

import (
	"context"
	"errors"
)

type identityKey struct{}

// identity is the verified caller stored on the request context.
type identity struct {
	userID   string
	tenantID string
	role     string
}

// WithIdentity attaches the verified caller to ctx. Middleware is the
// only writer; handlers and services read through the accessors below.
func WithIdentity(ctx context.Context, userID, tenantID, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity{
		userID:   userID,
		tenantID: tenantID,
		role:     role,
	})
}

var errNoIdentity = errors.New("no identity in context")

func fromCtx(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	return id, ok
}

func UserID(ctx context.Context) (string, error) {
	if id, ok := fromCtx(ctx); ok && id.userID != "" {
		return id.userID, nil
	}
	return "", errNoIdentity
}

func TenantID(ctx context.Context) (string, error) {
	if id, ok := fromCtx(ctx); ok && id.tenantID != "" {
		return id.tenantID, nil
	}
	return "", errNoIdentity
}

func Role(ctx context.Context) (string, error) {
	if id, ok := fromCtx(ctx); ok && id.role != "" {
		return id.role, nil
	}
	return "", errNoIdentity
}

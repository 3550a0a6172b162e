package session

import (
	"context"

	"stackit/internal/middleware"
	"stackit/internal/models"
)

type identityKey struct{}

// WithIdentity attaches user to ctx. Log records written with the returned
// context carry the user id.
func WithIdentity(ctx context.Context, user *models.User) context.Context {
	if user == nil {
		return ctx
	}
	ctx = middleware.WithUserID(ctx, user.ID)
	return context.WithValue(ctx, identityKey{}, user)
}

// IdentityFrom returns the user attached to ctx, or nil.
func IdentityFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(identityKey{}).(*models.User)
	return user
}

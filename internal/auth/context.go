package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/domain"
)

type contextKey string

const userKey contextKey = "user"

// ContextWithUser returns a new context that carries the authenticated user.
func ContextWithUser(ctx context.Context, user domain.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the context, if any.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	if ctx == nil {
		return domain.User{}, false
	}
	value := ctx.Value(userKey)
	if value == nil {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	if !ok {
		return domain.User{}, false
	}
	if user.ID == uuid.Nil {
		return domain.User{}, false
	}
	return user, true
}

// RequireUser returns the authenticated user or an error suitable for a 401.
func RequireUser(ctx context.Context) (domain.User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return domain.User{}, fmt.Errorf("no authenticated user in request context")
	}
	return user, nil
}

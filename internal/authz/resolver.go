// Package authz resolves whether a user may perform an action on a content
// item under the role/permission/condition model.
package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

// Resolver loads a user's effective role set and evaluates grants. It never
// mutates anything; the decision itself is the pure decide function below.
type Resolver struct {
	roles  repository.RoleRepository
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewResolver creates a permission resolver.
func NewResolver(roles repository.RoleRepository, users repository.UserRepository, logger zerolog.Logger) *Resolver {
	return &Resolver{
		roles:  roles,
		users:  users,
		logger: logger.With().Str("component", "authz").Logger(),
	}
}

// EffectiveRoles returns the union of the user's direct roles and the roles
// of every group the user belongs to. Group roles are additive, never
// subtractive.
func (r *Resolver) EffectiveRoles(ctx context.Context, user domain.User) ([]domain.Role, error) {
	seen := make(map[uuid.UUID]struct{}, len(user.RoleIDs))
	roleIDs := make([]uuid.UUID, 0, len(user.RoleIDs))
	for _, id := range user.RoleIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		roleIDs = append(roleIDs, id)
	}

	if len(user.GroupIDs) > 0 {
		groups, err := r.users.GetGroupsByIDs(ctx, user.GroupIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load groups for user %s: %w", user.ID, err)
		}
		for _, group := range groups {
			for _, id := range group.RoleIDs {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				roleIDs = append(roleIDs, id)
			}
		}
	}

	roles, err := r.roles.GetByIDs(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles for user %s: %w", user.ID, err)
	}

	return roles, nil
}

// CanPerformAction reports whether the user may perform the action on the
// given content type. The content item is optional; grants whose conditions
// need one are denied when it is absent. A missing grant anywhere means
// false: deny-by-default is the safety posture.
func (r *Resolver) CanPerformAction(ctx context.Context, user domain.User, contentTypeSlug string, action domain.Action, content *domain.ContentDocument) (bool, error) {
	roles, err := r.EffectiveRoles(ctx, user)
	if err != nil {
		return false, err
	}

	allowed := decide(roles, user.ID, contentTypeSlug, action, content)
	if !allowed {
		r.logger.Debug().
			Stringer("user", user.ID).
			Str("content_type", contentTypeSlug).
			Str("action", string(action)).
			Msg("permission denied")
	}
	return allowed, nil
}

// decide is the pure decision core over an already-resolved role set.
func decide(roles []domain.Role, userID uuid.UUID, contentTypeSlug string, action domain.Action, content *domain.ContentDocument) bool {
	if !action.Valid() {
		return false
	}

	for _, role := range roles {
		if role.HasCapability(domain.CapabilitySuperAdmin) {
			return true
		}
	}

	for _, role := range roles {
		permission, ok := role.PermissionFor(contentTypeSlug)
		if !ok {
			continue
		}
		grant, ok := permission.Grant(action)
		if !ok || !grant.Enabled {
			continue
		}
		if evaluateConditions(grant.Conditions, userID, content) {
			return true
		}
	}

	return false
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform account. Its effective permission set is the union of
// the permissions of its direct roles and of the roles of every group it
// belongs to; group roles are additive, never subtractive.
type User struct {
	ID                  uuid.UUID   `json:"id"`
	Username            string      `json:"username"`
	Email               string      `json:"email"`
	PasswordHash        string      `json:"-"`
	RoleIDs             []uuid.UUID `json:"role_ids,omitempty"`
	GroupIDs            []uuid.UUID `json:"group_ids,omitempty"`
	FailedLoginAttempts int         `json:"failed_login_attempts"`
	LockoutUntil        *time.Time  `json:"lockout_until,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// IsLockedOut reports whether the account is still in a lockout window.
func (u User) IsLockedOut(now time.Time) bool {
	return u.LockoutUntil != nil && now.Before(*u.LockoutUntil)
}

// UserGroup is a many-to-many grouping of users carrying additional roles.
type UserGroup struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	MemberUserIDs []uuid.UUID `json:"member_user_ids,omitempty"`
	RoleIDs       []uuid.UUID `json:"role_ids,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HasMember reports whether the user belongs to the group.
func (g UserGroup) HasMember(userID uuid.UUID) bool {
	for _, id := range g.MemberUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action is one of the four content actions a grant can authorize.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// CapabilitySuperAdmin short-circuits every permission and sensitivity check.
const CapabilitySuperAdmin = "SuperAdmin"

// ActionGrant enables one action, optionally guarded by conditions that must
// all hold against the content item. A condition value may be a literal or
// the $CURRENT_USER token.
type ActionGrant struct {
	Enabled    bool              `json:"enabled"`
	Conditions map[string]string `json:"conditions,omitempty"`
}

// ContentTypePermission binds a content type slug to four independent action
// grants.
type ContentTypePermission struct {
	ContentTypeSlug string      `json:"content_type_slug"`
	Create          ActionGrant `json:"create"`
	Read            ActionGrant `json:"read"`
	Update          ActionGrant `json:"update"`
	Delete          ActionGrant `json:"delete"`
}

// Grant returns the grant for the requested action.
func (p ContentTypePermission) Grant(action Action) (ActionGrant, bool) {
	switch action {
	case ActionCreate:
		return p.Create, true
	case ActionRead:
		return p.Read, true
	case ActionUpdate:
		return p.Update, true
	case ActionDelete:
		return p.Delete, true
	default:
		return ActionGrant{}, false
	}
}

// Role names a set of content type permissions plus system capabilities.
type Role struct {
	ID                 uuid.UUID               `json:"id"`
	Name               string                  `json:"name"`
	Permissions        []ContentTypePermission `json:"permissions"`
	SystemCapabilities []string                `json:"system_capabilities,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// NewRole creates a new role.
func NewRole(name string, permissions []ContentTypePermission, capabilities []string) Role {
	now := time.Now()
	return Role{
		ID:                 uuid.New(),
		Name:               name,
		Permissions:        copyPermissions(permissions),
		SystemCapabilities: append([]string(nil), capabilities...),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// HasCapability reports whether the role carries the named system capability.
func (r Role) HasCapability(capability string) bool {
	for _, c := range r.SystemCapabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// PermissionFor returns the permission entry matching the content type slug.
func (r Role) PermissionFor(slug string) (ContentTypePermission, bool) {
	for _, p := range r.Permissions {
		if p.ContentTypeSlug == slug {
			return p, true
		}
	}
	return ContentTypePermission{}, false
}

func (r Role) GetPermissionsAsJSONB() (json.RawMessage, error) {
	if r.Permissions == nil {
		return json.Marshal([]ContentTypePermission{})
	}
	return json.Marshal(r.Permissions)
}

// FromJSONBPermissions decodes role permissions from JSONB storage.
func FromJSONBPermissions(permissionsJSON json.RawMessage) ([]ContentTypePermission, error) {
	var permissions []ContentTypePermission
	err := json.Unmarshal(permissionsJSON, &permissions)
	return permissions, err
}

func copyPermissions(permissions []ContentTypePermission) []ContentTypePermission {
	if permissions == nil {
		return nil
	}
	newPermissions := make([]ContentTypePermission, len(permissions))
	copy(newPermissions, permissions)
	return newPermissions
}

package identity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies which portal an identity belongs to.
type Role int

// Known roles. The numeric values are part of the backend wire format.
const (
	RoleSuperAdmin Role = 1
	RoleAdminStaff Role = 2
	RoleOfftaker   Role = 3
	RoleInvestor   Role = 4
)

// String returns the role slug used in logs and templates.
func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super_admin"
	case RoleAdminStaff:
		return "admin_staff"
	case RoleOfftaker:
		return "offtaker"
	case RoleInvestor:
		return "investor"
	default:
		return fmt.Sprintf("role_%d", int(r))
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r >= RoleSuperAdmin && r <= RoleInvestor
}

// Status tracks whether an account may sign in.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// PermissionMap grants capabilities per module.
type PermissionMap map[Module]map[Capability]bool

// Clone returns a deep copy of the map. A nil map clones to nil.
func (m PermissionMap) Clone() PermissionMap {
	if m == nil {
		return nil
	}
	out := make(PermissionMap, len(m))
	for module, caps := range m {
		inner := make(map[Capability]bool, len(caps))
		for c, granted := range caps {
			inner[c] = granted
		}
		out[module] = inner
	}
	return out
}

// Grant sets capability c on module to true, allocating as needed.
func (m PermissionMap) Grant(module Module, caps ...Capability) {
	inner, ok := m[module]
	if !ok {
		inner = make(map[Capability]bool, len(caps))
		m[module] = inner
	}
	for _, c := range caps {
		inner[c] = true
	}
}

// Set records an explicit grant or denial.
func (m PermissionMap) Set(module Module, c Capability, granted bool) {
	inner, ok := m[module]
	if !ok {
		inner = make(map[Capability]bool)
		m[module] = inner
	}
	inner[c] = granted
}

// Merge overlays other on top of m. Entries in other win.
func (m PermissionMap) Merge(other PermissionMap) {
	for module, caps := range other {
		for c, granted := range caps {
			m.Set(module, c, granted)
		}
	}
}

// Identity is the authenticated actor together with its grants.
type Identity struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Role        Role          `json:"role"`
	Status      Status        `json:"status"`
	Permissions PermissionMap `json:"permissions,omitempty"`
}

// IsSuperAdmin reports whether the identity bypasses permission checks.
func (i *Identity) IsSuperAdmin() bool {
	return i != nil && i.Role == RoleSuperAdmin
}

// Active reports whether the account is enabled.
func (i *Identity) Active() bool {
	return i != nil && i.Status == StatusActive
}

// Clone returns a copy that shares no mutable state with i.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.Permissions = i.Permissions.Clone()
	return &out
}

// Validate checks the fields a backend response must carry.
func (i *Identity) Validate() error {
	if i == nil {
		return fmt.Errorf("identity: missing")
	}
	if i.ID <= 0 {
		return fmt.Errorf("identity: invalid id %d", i.ID)
	}
	if strings.TrimSpace(i.Email) == "" {
		return fmt.Errorf("identity: email required")
	}
	if !i.Role.Valid() {
		return fmt.Errorf("identity: unknown role %d", int(i.Role))
	}
	return nil
}

// Decode parses a serialized identity and validates it.
func Decode(data []byte) (*Identity, error) {
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("identity: decode: %w", err)
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &id, nil
}

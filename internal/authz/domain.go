// Package authz evaluates what an authenticated principal may do.
package authz

import "github.com/visadesk/visadesk/internal/shared"

// Role is the coarse actor category fixed at authentication time.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleAgent, RoleCustomer:
		return true
	default:
		return false
	}
}

// Principal describes the authenticated actor. It is read-only once built.
type Principal struct {
	ID          string          `json:"id"`
	Role        Role            `json:"role"`
	Permissions map[string]bool `json:"permissions"`
}

// NewPrincipal builds a principal whose permission map holds the role
// defaults plus the additive grants. Grants can only add permissions.
func NewPrincipal(id string, role Role, grants []string) *Principal {
	perms := make(map[string]bool)
	for _, code := range RoleDefaults(role) {
		perms[code] = true
	}
	for _, code := range grants {
		if code == "" {
			continue
		}
		perms[code] = true
	}
	return &Principal{ID: id, Role: role, Permissions: perms}
}

var roleDefaults = map[Role][]string{
	RoleStaff: {
		shared.PermApplicationsView,
		shared.PermApplicationsCreate,
		shared.PermApplicationsEdit,
		shared.PermApplicationsTransition,
		shared.PermApplicationsAssign,
		shared.PermNotificationsView,
	},
	RoleAgent: {
		shared.PermApplicationsView,
		shared.PermApplicationsCreate,
		shared.PermNotificationsView,
	},
	RoleCustomer: {
		shared.PermApplicationsView,
		shared.PermNotificationsView,
	},
}

// RoleDefaults returns the permissions every principal of the role holds.
// Admins need none.
func RoleDefaults(role Role) []string {
	defaults := roleDefaults[role]
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out
}

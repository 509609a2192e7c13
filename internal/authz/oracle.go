package authz

import "github.com/visadesk/visadesk/internal/shared"

// Allows reports whether p holds code. Admins are allowed everything without
// consulting the map; everyone else needs an explicit true entry.
func Allows(p *Principal, code string) bool {
	if p == nil || p.Permissions == nil {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	return p.Permissions[code]
}

// AllowsAny reports whether p holds at least one of codes.
func AllowsAny(p *Principal, codes ...string) bool {
	if p == nil || p.Permissions == nil {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	for _, code := range codes {
		if p.Permissions[code] {
			return true
		}
	}
	return false
}

// AllowsAll reports whether p holds every one of codes.
func AllowsAll(p *Principal, codes ...string) bool {
	if p == nil || p.Permissions == nil {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	for _, code := range codes {
		if !p.Permissions[code] {
			return false
		}
	}
	return true
}

// CanTransition gates status changes on existing applications. Agents may
// create applications but never progress them, whatever their grants say.
func CanTransition(p *Principal) bool {
	if p == nil || p.Role == RoleAgent {
		return false
	}
	return Allows(p, shared.PermApplicationsTransition)
}

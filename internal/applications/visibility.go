package applications

import (
	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/shared"
)

// VisibilityOptions carries client-side list preferences.
type VisibilityOptions struct {
	// MineOnly narrows a staff list to applications assigned to the caller.
	// It shapes the view and is not a security boundary.
	MineOnly bool
}

// Visible reduces records to the subset p may see. The rules for agents and
// customers mirror what the data store enforces server-side and must never
// be bypassed. Input order is preserved and records is not modified.
func Visible(p *authz.Principal, records []Application, opts VisibilityOptions) []Application {
	if p == nil {
		return []Application{}
	}
	var keep func(Application) bool
	switch p.Role {
	case authz.RoleAdmin:
		keep = func(Application) bool { return true }
	case authz.RoleAgent:
		keep = func(a Application) bool {
			return a.CreatorRole == authz.RoleAgent && a.CreatorID == p.ID
		}
	case authz.RoleStaff:
		switch {
		case opts.MineOnly:
			keep = func(a Application) bool { return a.AssignedTo(p.ID) }
		case authz.Allows(p, shared.PermApplicationsView):
			keep = func(Application) bool { return true }
		default:
			return []Application{}
		}
	case authz.RoleCustomer:
		keep = func(a Application) bool { return a.CustomerID == p.ID }
	default:
		return []Application{}
	}

	out := make([]Application, 0, len(records))
	for _, a := range records {
		if !keep(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Live drops soft-deleted records. Deleted applications are hidden from every
// role, admins included, before visibility rules run.
func Live(records []Application) []Application {
	out := make([]Application, 0, len(records))
	for _, a := range records {
		if !a.IsDeleted() {
			out = append(out, a)
		}
	}
	return out
}

// CanSee reports whether a single record passes Visible for p.
func CanSee(p *authz.Principal, a Application) bool {
	return len(Visible(p, []Application{a}, VisibilityOptions{})) == 1
}

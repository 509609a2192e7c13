package authz

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/visadesk/visadesk/internal/platform/httpx"
	"github.com/visadesk/visadesk/internal/shared"
)

// PermissionsHandler exposes the permission catalogue and the caller's
// effective grants so presentation code never re-derives the admin bypass.
type PermissionsHandler struct {
	mw Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(mw Middleware) *PermissionsHandler {
	return &PermissionsHandler{mw: mw}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermPermissionsView))
		r.Get("/permissions", h.listPermissions)
	})
}

type permissionsResponse struct {
	Permissions  []string          `json:"permissions"`
	RoleDefaults map[Role][]string `json:"roleDefaults"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms := shared.AllScopes()
	sort.Strings(perms)
	defaults := make(map[Role][]string, 3)
	for _, role := range []Role{RoleStaff, RoleAgent, RoleCustomer} {
		defaults[role] = RoleDefaults(role)
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Permissions: perms, RoleDefaults: defaults})
}

type meResponse struct {
	ID      string          `json:"id"`
	Role    Role            `json:"role"`
	Allowed map[string]bool `json:"allowed"`
}

// me reports every known code evaluated through the oracle.
func (h *PermissionsHandler) me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	allowed := make(map[string]bool)
	for _, code := range shared.AllScopes() {
		allowed[code] = Allows(p, code)
	}
	httpx.JSON(w, http.StatusOK, meResponse{ID: p.ID, Role: p.Role, Allowed: allowed})
}

package applications

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/platform/httpx"
	"github.com/visadesk/visadesk/internal/shared"
)

// Handler wires HTTP endpoints for applications.
type Handler struct {
	service   *Service
	mw        authz.Middleware
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(service *Service, mw authz.Middleware, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, mw: mw, validator: validator.New(), logger: logger}
}

// MountRoutes registers application routes. Routes expect Authenticate to
// have run.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermApplicationsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/transitions", h.transitions)
	})
	r.With(h.mw.RequireAny(shared.PermApplicationsCreate)).Post("/", h.create)
	r.With(h.mw.RequireAny(shared.PermApplicationsTransition)).Post("/{id}/transition", h.transition)
	r.With(h.mw.RequireAny(shared.PermApplicationsDelete)).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	opts := VisibilityOptions{MineOnly: isTruthy(r.URL.Query().Get("mine"))}
	items, err := h.service.List(r.Context(), p, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	app, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, app)
}

func (h *Handler) transitions(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	app, err := h.service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	targets, err := h.service.Targets(p, app)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": app.Status, "allowedTransitions": targets})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	principal := authz.PrincipalFromContext(r.Context())
	var role authz.Role
	if principal != nil {
		role = principal.Role
	}
	in, err := req.ToInput(h.validator, role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	app, err := h.service.Create(r.Context(), principal, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, app)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	app, err := h.service.Transition(r.Context(), authz.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), Status(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, app)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), authz.PrincipalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsInvalidTransition(err), IsCorruptState(err), IsNotFound(err),
		errors.Is(err, shared.ErrPermissionDenied), errors.Is(err, shared.ErrValidation):
		h.logger.Info("application request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	default:
		h.logger.Error("application request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isTruthy(v string) bool {
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

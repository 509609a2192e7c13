package applications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/notify"
	"github.com/visadesk/visadesk/internal/shared"
)

// Store is the external application data store.
type Store interface {
	ListApplications(ctx context.Context) ([]Application, error)
	GetApplication(ctx context.Context, id string) (Application, error)
	CreateApplication(ctx context.Context, app Application) (Application, error)
	UpdateApplication(ctx context.Context, app Application) (Application, error)
	DeleteApplication(ctx context.Context, id string, at time.Time) error
}

// Dispatcher hands confirmed changes to the notification backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipients []string, ev notify.Event) error
}

// Listed is an application together with what the caller may do with it.
type Listed struct {
	Application
	AllowedTransitions []Status `json:"allowedTransitions"`
	Corrupt            bool     `json:"corrupt,omitempty"`
}

// Service orchestrates permission checks, workflow rules, the data store and
// notification dispatch.
type Service struct {
	store      Store
	engine     *Engine
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewService constructs a Service. A nil dispatcher disables notifications.
func NewService(store Store, engine *Engine, dispatcher Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, engine: engine, dispatcher: dispatcher, logger: logger}
}

// List returns the applications p may see. Records with a corrupt status are
// still listed, flagged and without allowed transitions.
func (s *Service) List(ctx context.Context, p *authz.Principal, opts VisibilityOptions) ([]Listed, error) {
	if !authz.Allows(p, shared.PermApplicationsView) {
		return nil, shared.ErrPermissionDenied
	}
	records, err := s.store.ListApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	visible := Visible(p, Live(records), opts)
	out := make([]Listed, 0, len(visible))
	for _, app := range visible {
		item := Listed{Application: app, AllowedTransitions: []Status{}}
		targets, err := s.Targets(p, app)
		switch {
		case IsCorruptState(err):
			s.logger.Warn("application corrupt status", slog.String("id", app.ID), slog.String("status", string(app.Status)))
			item.Corrupt = true
		case err == nil:
			item.AllowedTransitions = targets
		}
		out = append(out, item)
	}
	return out, nil
}

// Get returns a single visible application.
func (s *Service) Get(ctx context.Context, p *authz.Principal, id string) (Application, error) {
	if !authz.Allows(p, shared.PermApplicationsView) {
		return Application{}, shared.ErrPermissionDenied
	}
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.IsDeleted() || !CanSee(p, app) {
		return Application{}, ErrNotFound
	}
	return app, nil
}

// Targets lists the statuses p may move app to.
func (s *Service) Targets(p *authz.Principal, app Application) ([]Status, error) {
	targets, err := s.engine.AllowedTargets(app.Status)
	if err != nil {
		return nil, err
	}
	if !authz.CanTransition(p) {
		return []Status{}, nil
	}
	return targets, nil
}

// Create applies the creator's defaults and stores the application.
func (s *Service) Create(ctx context.Context, p *authz.Principal, in CreateInput) (Application, error) {
	if !authz.Allows(p, shared.PermApplicationsCreate) {
		return Application{}, shared.ErrPermissionDenied
	}
	if in.AssigneeID != nil && !authz.Allows(p, shared.PermApplicationsAssign) {
		in.AssigneeID = nil
	}
	app, err := s.engine.PrepareCreate(p, in)
	if err != nil {
		return Application{}, err
	}
	created, err := s.store.CreateApplication(ctx, app)
	if err != nil {
		return Application{}, fmt.Errorf("create application: %w", err)
	}
	s.dispatch(ctx, created, notify.KindInfo, fmt.Sprintf("Application %s created", created.ID))
	return created, nil
}

// Transition moves an application to status to. The stored record is left
// unchanged when the move is rejected.
func (s *Service) Transition(ctx context.Context, p *authz.Principal, id string, to Status) (Application, error) {
	if !authz.CanTransition(p) {
		return Application{}, shared.ErrPermissionDenied
	}
	app, err := s.Get(ctx, p, id)
	if err != nil {
		return Application{}, err
	}
	next, err := s.engine.Transition(app.Status, to)
	if err != nil {
		return Application{}, err
	}
	if next == app.Status {
		return app, nil
	}
	from := app.Status
	app.Status = next
	app.UpdatedAt = s.engine.now().UTC()
	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		return Application{}, fmt.Errorf("update application: %w", err)
	}
	s.dispatch(ctx, updated, kindFor(next), fmt.Sprintf("Application %s moved from %s to %s", updated.ID, from, next))
	return updated, nil
}

// Delete soft-deletes an application.
func (s *Service) Delete(ctx context.Context, p *authz.Principal, id string) error {
	if !authz.Allows(p, shared.PermApplicationsDelete) {
		return shared.ErrPermissionDenied
	}
	app, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteApplication(ctx, app.ID, s.engine.now().UTC()); err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	s.dispatch(ctx, app, notify.KindWarning, fmt.Sprintf("Application %s was deleted", app.ID))
	return nil
}

// dispatch is fire-and-report: a failed dispatch never undoes a confirmed
// write, and recipients re-fetch authoritative state anyway.
func (s *Service) dispatch(ctx context.Context, app Application, kind notify.Kind, message string) {
	if s.dispatcher == nil {
		return
	}
	ev := notify.NewEvent(kind, "application", app.ID, message, s.engine.now())
	if err := s.dispatcher.Dispatch(ctx, RecipientsOf(app), ev); err != nil {
		s.logger.Error("dispatch application event", slog.String("id", app.ID), slog.Any("error", err))
	}
}

// RecipientsOf lists the principals interested in changes to app.
func RecipientsOf(app Application) []string {
	ids := []string{app.CreatorID, app.CustomerID}
	if app.AssigneeID != nil {
		ids = append(ids, *app.AssigneeID)
	}
	return notify.Recipients(ids...)
}

func kindFor(s Status) notify.Kind {
	switch s {
	case StatusApproved:
		return notify.KindSuccess
	case StatusRejected:
		return notify.KindError
	case StatusCancelled:
		return notify.KindWarning
	default:
		return notify.KindInfo
	}
}

// IsNotFound reports whether err means the application is missing or hidden.
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

package applications

import (
	"time"

	"github.com/visadesk/visadesk/internal/authz"
)

// forward holds the canonical monotonic edges. Cancellation and self-loops
// are handled separately in Transition.
var forward = map[Status][]Status{
	StatusDraft:       {StatusPending},
	StatusPending:     {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview},
	StatusUnderReview: {StatusApproved, StatusRejected},
}

// initialStatuses are the statuses staff and admins may create in.
var initialStatuses = map[Status]struct{}{
	StatusDraft:       {},
	StatusPending:     {},
	StatusSubmitted:   {},
	StatusUnderReview: {},
}

// Engine is the application status state machine. It performs no I/O.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", &CorruptStateError{Value: raw}
	}
	return s, nil
}

// Transition validates moving from one status to another and returns the
// resulting status.
func (e *Engine) Transition(from, to Status) (Status, error) {
	if !from.IsValid() {
		return "", &CorruptStateError{Value: string(from)}
	}
	if !to.IsValid() {
		return "", &CorruptStateError{Value: string(to)}
	}
	if from == to {
		return to, nil
	}
	if from.IsTerminal() {
		return "", &InvalidTransitionError{From: from, To: to}
	}
	if to == StatusCancelled {
		return to, nil
	}
	for _, next := range forward[from] {
		if next == to {
			return to, nil
		}
	}
	return "", &InvalidTransitionError{From: from, To: to}
}

// AllowedTargets lists the statuses reachable from from, excluding from
// itself, in canonical order.
func (e *Engine) AllowedTargets(from Status) ([]Status, error) {
	if !from.IsValid() {
		return nil, &CorruptStateError{Value: string(from)}
	}
	targets := make([]Status, 0, 3)
	for _, candidate := range statusOrder {
		if candidate == from {
			continue
		}
		if _, err := e.Transition(from, candidate); err == nil {
			targets = append(targets, candidate)
		}
	}
	return targets, nil
}

// HonoursCreateFields reports whether a creator of role may choose the
// initial status and estimated completion date. Everyone else may submit
// them but they never take effect.
func HonoursCreateFields(role authz.Role) bool {
	return role == authz.RoleStaff || role == authz.RoleAdmin
}

// PrepareCreate derives the application to store for a creation request by
// p. Agents and customers always start in draft without an estimated
// completion date, whatever they submitted; staff and admins may choose any
// pre-decision status.
func (e *Engine) PrepareCreate(p *authz.Principal, in CreateInput) (Application, error) {
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.IsValid() {
		return Application{}, ErrInvalidPriority
	}

	app := Application{
		Priority:   priority,
		CustomerID: in.CustomerID,
		ServiceID:  in.ServiceID,
		AssigneeID: in.AssigneeID,
		Notes:      in.Notes,
		CreatorID:  p.ID,
		Status:     StatusDraft,
	}
	app.CreatorRole = p.Role

	switch {
	case HonoursCreateFields(p.Role):
		if in.Status != "" {
			if _, ok := initialStatuses[in.Status]; !ok {
				return Application{}, ErrInvalidInitialStatus
			}
			app.Status = in.Status
		}
		app.EstimatedCompletionDate = in.EstimatedCompletionDate
	default:
		app.EstimatedCompletionDate = nil
		app.AssigneeID = nil
		if p.Role == authz.RoleCustomer {
			app.CustomerID = p.ID
		}
	}

	now := e.now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	return app, nil
}

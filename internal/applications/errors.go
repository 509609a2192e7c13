package applications

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/visadesk/visadesk/internal/shared"
)

var (
	// ErrNotFound indicates the application does not exist or is not visible.
	ErrNotFound = fmt.Errorf("application %w", shared.ErrNotFound)
	// ErrInvalidInitialStatus indicates a creation status outside the
	// statuses a new application may start in.
	ErrInvalidInitialStatus = fmt.Errorf("%w: status not allowed for new application", shared.ErrValidation)
	// ErrInvalidPriority indicates an unknown priority value.
	ErrInvalidPriority = fmt.Errorf("%w: unknown priority", shared.ErrValidation)
)

// InvalidTransitionError reports a rejected status change. The record is
// left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// HTTPStatus maps the error to 409 Conflict.
func (e *InvalidTransitionError) HTTPStatus() int { return http.StatusConflict }

// CorruptStateError reports a status value the workflow does not recognise.
// Workflow operations on the affected record cannot proceed.
type CorruptStateError struct {
	Value string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt application status %q", e.Value)
}

// HTTPStatus maps the error to 422 Unprocessable Entity.
func (e *CorruptStateError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// IsCorruptState reports whether err is a CorruptStateError.
func IsCorruptState(err error) bool {
	var target *CorruptStateError
	return errors.As(err, &target)
}

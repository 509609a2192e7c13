package applications

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/shared"
)

// CreateRequest is the JSON body accepted by POST /applications.
type CreateRequest struct {
	CustomerID              string  `json:"customerId" validate:"omitempty,max=64"`
	ServiceID               string  `json:"serviceId" validate:"required,max=64"`
	Priority                string  `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Status                  string  `json:"status" validate:"omitempty,oneof=draft pending submitted under_review approved rejected cancelled"`
	AssigneeID              *string `json:"assigneeId" validate:"omitempty,max=64"`
	Notes                   string  `json:"notes" validate:"max=2000"`
	EstimatedCompletionDate *string `json:"estimatedCompletionDate" validate:"omitempty"`
}

// TransitionRequest is the JSON body accepted by POST /applications/{id}/transition.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

const dateLayout = "2006-01-02"

// ToInput validates the request and converts it into a CreateInput for a
// creator of role. Status and date from creators whose values are overridden
// are discarded before validation, so malformed values there never fail.
func (r CreateRequest) ToInput(v *validator.Validate, role authz.Role) (CreateInput, error) {
	if !HonoursCreateFields(role) {
		r.Status = ""
		r.EstimatedCompletionDate = nil
	}
	if err := v.Struct(r); err != nil {
		return CreateInput{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	in := CreateInput{
		CustomerID: r.CustomerID,
		ServiceID:  r.ServiceID,
		Priority:   Priority(r.Priority),
		Status:     Status(r.Status),
		AssigneeID: r.AssigneeID,
		Notes:      r.Notes,
	}
	if r.EstimatedCompletionDate != nil && *r.EstimatedCompletionDate != "" {
		d, err := parseDate(*r.EstimatedCompletionDate)
		if err != nil {
			return CreateInput{}, err
		}
		in.EstimatedCompletionDate = &d
	}
	return in, nil
}

func parseDate(raw string) (time.Time, error) {
	if d, err := time.Parse(dateLayout, raw); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: estimatedCompletionDate must be YYYY-MM-DD", shared.ErrValidation)
	}
	return d, nil
}

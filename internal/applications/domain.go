// Package applications implements the application workflow: status rules,
// role-dependent creation defaults and per-principal visibility.
package applications

import (
	"time"

	"github.com/visadesk/visadesk/internal/authz"
)

// Status represents the lifecycle of an application.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusPending     Status = "pending"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
)

// statusOrder is the canonical ordering used when listing targets.
var statusOrder = []Status{
	StatusDraft,
	StatusPending,
	StatusSubmitted,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusCancelled,
}

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusSubmitted, StatusUnderReview,
		StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transitions leave s.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Priority ranks how urgently an application should be handled.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Application is a customer's visa or document-service request.
type Application struct {
	ID                      string     `json:"id"`
	Status                  Status     `json:"status"`
	Priority                Priority   `json:"priority"`
	CustomerID              string     `json:"customerId"`
	ServiceID               string     `json:"serviceId"`
	AssigneeID              *string    `json:"assigneeId,omitempty"`
	CreatorID               string     `json:"creatorId"`
	CreatorRole             authz.Role `json:"creatorRole"`
	Notes                   string     `json:"notes,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
	EstimatedCompletionDate *time.Time `json:"estimatedCompletionDate"`
	DeletedAt               *time.Time `json:"deletedAt,omitempty"`
}

// IsDeleted reports whether the application was soft-deleted.
func (a Application) IsDeleted() bool {
	return a.DeletedAt != nil
}

// AssignedTo reports whether the application is assigned to principalID.
func (a Application) AssignedTo(principalID string) bool {
	return a.AssigneeID != nil && *a.AssigneeID == principalID
}

// CreateInput carries caller-supplied fields for a new application. Status
// and EstimatedCompletionDate are requests, not guarantees: the engine may
// override them depending on the creator's role.
type CreateInput struct {
	CustomerID              string
	ServiceID               string
	Priority                Priority
	Status                  Status
	AssigneeID              *string
	Notes                   string
	EstimatedCompletionDate *time.Time
}

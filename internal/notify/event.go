// Package notify delivers application events to connected principals and
// keeps the per-principal read/unread ledger.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification for presentation.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// IsValid checks if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError:
		return true
	default:
		return false
	}
}

// Event is an immutable server-originated notification.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	SubjectType string    `json:"subjectType,omitempty"`
	SubjectID   string    `json:"subjectId,omitempty"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// NewEvent stamps a fresh ID and timestamp.
func NewEvent(kind Kind, subjectType, subjectID, message string, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Message:     message,
		OccurredAt:  at.UTC(),
	}
}

// Validate checks the fields every notification payload must carry.
func (e Event) Validate() error {
	switch {
	case e.ID == "":
		return errors.New("notify: event id required")
	case !e.Kind.IsValid():
		return fmt.Errorf("notify: unknown event kind %q", e.Kind)
	case e.Message == "":
		return errors.New("notify: event message required")
	case e.OccurredAt.IsZero():
		return errors.New("notify: event occurredAt required")
	}
	return nil
}

// Before reports whether e is ordered before other: by OccurredAt, then ID.
func (e Event) Before(other Event) bool {
	if !e.OccurredAt.Equal(other.OccurredAt) {
		return e.OccurredAt.Before(other.OccurredAt)
	}
	return e.ID < other.ID
}

// Frame types carried by the transport.
const (
	FrameNotification = "notification"
	FrameAck          = "ack"
)

// Frame is the transport envelope.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AckAction names a read-state change forwarded to the server.
type AckAction string

const (
	AckRead    AckAction = "read"
	AckReadAll AckAction = "read_all"
	AckDismiss AckAction = "dismiss"
	AckClear   AckAction = "clear"
)

// Ack is the payload of an outbound ack frame.
type Ack struct {
	PrincipalID string    `json:"principalId"`
	EventID     string    `json:"eventId,omitempty"`
	Action      AckAction `json:"action"`
}

// NotificationFrame wraps ev in a transport frame.
func NotificationFrame(ev Event) (Frame, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameNotification, Data: data}, nil
}

// AckFrame wraps ack in a transport frame.
func AckFrame(ack Ack) (Frame, error) {
	data, err := json.Marshal(ack)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameAck, Data: data}, nil
}

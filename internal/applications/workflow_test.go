package applications

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/shared"
)

func fixedEngine(now time.Time) *Engine {
	return &Engine{now: func() time.Time { return now }}
}

type edge struct{ from, to Status }

func legalEdges() map[edge]bool {
	legal := map[edge]bool{
		{StatusDraft, StatusPending}:         true,
		{StatusPending, StatusSubmitted}:     true,
		{StatusSubmitted, StatusUnderReview}: true,
		{StatusUnderReview, StatusApproved}:  true,
		{StatusUnderReview, StatusRejected}:  true,
		{StatusDraft, StatusCancelled}:       true,
		{StatusPending, StatusCancelled}:     true,
		{StatusSubmitted, StatusCancelled}:   true,
		{StatusUnderReview, StatusCancelled}: true,
	}
	for _, s := range statusOrder {
		legal[edge{s, s}] = true
	}
	return legal
}

func TestTransitionMatrix(t *testing.T) {
	engine := NewEngine()
	legal := legalEdges()
	for _, from := range statusOrder {
		for _, to := range statusOrder {
			got, err := engine.Transition(from, to)
			if legal[edge{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, got)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			var invalid *InvalidTransitionError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, from, invalid.From)
			assert.Equal(t, to, invalid.To)
		}
	}
}

func TestTransitionRejectsBackwardAndSkip(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Transition(StatusApproved, StatusSubmitted)
	assert.True(t, IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "approved")
	assert.Contains(t, err.Error(), "submitted")

	_, err = engine.Transition(StatusDraft, StatusUnderReview)
	assert.True(t, IsInvalidTransition(err))
}

func TestTransitionCorruptState(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Transition(Status("archived"), StatusPending)
	require.Error(t, err)
	assert.True(t, IsCorruptState(err))
	assert.False(t, IsInvalidTransition(err))

	_, err = engine.Transition(StatusDraft, Status(""))
	assert.True(t, IsCorruptState(err))

	_, err = ParseStatus("bogus")
	assert.True(t, IsCorruptState(err))
	s, err := ParseStatus("under_review")
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, s)
}

func TestAllowedTargets(t *testing.T) {
	engine := NewEngine()

	targets, err := engine.AllowedTargets(StatusUnderReview)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusApproved, StatusRejected, StatusCancelled}, targets)

	targets, err = engine.AllowedTargets(StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusPending, StatusCancelled}, targets)

	for _, terminal := range []Status{StatusApproved, StatusRejected, StatusCancelled} {
		targets, err = engine.AllowedTargets(terminal)
		require.NoError(t, err)
		assert.Empty(t, targets)
	}

	_, err = engine.AllowedTargets("weird")
	assert.True(t, IsCorruptState(err))
}

func TestPrepareCreateAgentForcedToDraft(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	engine := fixedEngine(now)
	agent := authz.NewPrincipal("agent-1", authz.RoleAgent, nil)
	date := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	assignee := "staff-9"

	app, err := engine.PrepareCreate(agent, CreateInput{
		CustomerID:              "cust-1",
		ServiceID:               "svc-1",
		Status:                  StatusApproved,
		AssigneeID:              &assignee,
		EstimatedCompletionDate: &date,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, app.Status)
	assert.Nil(t, app.EstimatedCompletionDate)
	assert.Nil(t, app.AssigneeID)
	assert.Equal(t, "agent-1", app.CreatorID)
	assert.Equal(t, authz.RoleAgent, app.CreatorRole)
	assert.Equal(t, "cust-1", app.CustomerID)
	assert.Equal(t, PriorityNormal, app.Priority)
	assert.Equal(t, now.UTC(), app.CreatedAt)
	assert.Equal(t, time.UTC, app.CreatedAt.Location())
}

func TestPrepareCreateCustomerOwnsApplication(t *testing.T) {
	engine := NewEngine()
	customer := authz.NewPrincipal("cust-7", authz.RoleCustomer, nil)

	app, err := engine.PrepareCreate(customer, CreateInput{CustomerID: "someone-else", ServiceID: "svc", Status: StatusPending})
	require.NoError(t, err)
	assert.Equal(t, "cust-7", app.CustomerID)
	assert.Equal(t, StatusDraft, app.Status)
}

func TestPrepareCreateStaffChoosesInitialState(t *testing.T) {
	engine := NewEngine()
	staff := authz.NewPrincipal("staff-1", authz.RoleStaff, nil)
	date := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	app, err := engine.PrepareCreate(staff, CreateInput{
		CustomerID:              "cust-1",
		ServiceID:               "svc-1",
		Status:                  StatusSubmitted,
		Priority:                PriorityUrgent,
		EstimatedCompletionDate: &date,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, app.Status)
	assert.Equal(t, PriorityUrgent, app.Priority)
	require.NotNil(t, app.EstimatedCompletionDate)
	assert.True(t, date.Equal(*app.EstimatedCompletionDate))

	_, err = engine.PrepareCreate(staff, CreateInput{ServiceID: "svc-1", Status: StatusApproved})
	assert.ErrorIs(t, err, ErrInvalidInitialStatus)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = engine.PrepareCreate(staff, CreateInput{ServiceID: "svc-1", Priority: "critical"})
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

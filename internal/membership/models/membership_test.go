package models

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

var now = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func newDraft(t *testing.T) *Membership {
	t.Helper()
	m, err := NewMembership(
		id.NewMemberID(),
		id.TenantID(uuid.New()),
		"PDA",
		"FULL",
		PersonalInfo{FullName: "Asha Okello", Email: "asha@example.org", Phone: "+254700000001"},
		nil,
		now,
	)
	require.NoError(t, err)
	return m
}

func textGeo() GeographyRef {
	return GeographyRef{Raw: "text:Ward5"}
}

func resolvedGeo() GeographyRef {
	return GeographyRef{Raw: "text:Ward5", NodeID: "geo-ward-5", Path: "KE/Nairobi/Westlands/Ward5", Level: id.GeoLevelWard}
}

// advance walks a fresh aggregate to the requested state through legal
// transitions so each test starts from a consistent snapshot.
func advance(t *testing.T, m *Membership, target State) {
	t.Helper()
	approver := id.ActorID(uuid.New())
	number := id.FormatMembershipNumber("PDA", 2026, "FULL", 1)

	depth := map[State]int{
		StateDraft: 0, StatePending: 1, StateRejected: 1,
		StateApproved: 2, StateActive: 3, StateSuspended: 4, StateTerminated: 4,
	}
	steps := []func(){
		func() { m.ApplySubmit(textGeo(), now) },
		func() { m.ApplyApprove(approver, number, now) },
		func() { m.ApplyActivate("PX1", resolvedGeo(), now) },
	}
	for i := 0; i < depth[target] && i < len(steps); i++ {
		steps[i]()
	}
	switch target {
	case StateSuspended:
		m.ApplySuspend(approver, "dues arrears", now)
	case StateTerminated:
		m.ApplyTerminate(approver, "left the party", now)
	case StateRejected:
		m.ApplyReject(approver, "incomplete documents", now)
	}
	require.Equal(t, target, m.State)
	m.ClearPendingEvents()
}

func TestNewMembership_RequiresIdentity(t *testing.T) {
	_, err := NewMembership(id.MemberID{}, id.TenantID(uuid.New()), "PDA", "FULL", PersonalInfo{}, nil, now)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewMembership(id.NewMemberID(), id.TenantID(uuid.New()), "", "FULL", PersonalInfo{}, nil, now)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestSubmit_HappyPath(t *testing.T) {
	m := newDraft(t)

	require.NoError(t, m.CanSubmit(textGeo()))
	m.ApplySubmit(textGeo(), now)

	assert.Equal(t, StatePending, m.State)
	require.Len(t, m.PendingEvents(), 1)

	event, ok := m.PendingEvents()[0].(MembershipSubmitted)
	require.True(t, ok)
	assert.Equal(t, StateDraft, event.FromState)
	assert.Equal(t, StatePending, event.ToState)
	assert.Equal(t, int64(1), event.Version)
	assert.Equal(t, "text:Ward5", event.GeographyRef)
	require.NoError(t, m.Invariants())
}

func TestSubmit_RequiresCompleteInfoAndGeography(t *testing.T) {
	m := newDraft(t)
	m.Person.Email = ""
	err := m.CanSubmit(textGeo())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	m = newDraft(t)
	err = m.CanSubmit(GeographyRef{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestApprove_OnDraftIsInvalidTransition(t *testing.T) {
	m := newDraft(t)

	err := m.CanApprove(id.ActorID(uuid.New()), id.FormatMembershipNumber("PDA", 2026, "FULL", 1))
	require.Error(t, err)

	ite, ok := AsInvalidTransition(err)
	require.True(t, ok)
	assert.Equal(t, StateDraft, ite.From)
	assert.Equal(t, StateApproved, ite.To)
	assert.Empty(t, m.PendingEvents())
	assert.Equal(t, StateDraft, m.State)
}

func TestApprove_AssignsNumberExactlyOnce(t *testing.T) {
	m := newDraft(t)
	advance(t, m, StatePending)

	approver := id.ActorID(uuid.New())
	number := id.FormatMembershipNumber("PDA", 2026, "FULL", 7)
	require.NoError(t, m.CanApprove(approver, number))
	m.ApplyApprove(approver, number, now)

	assert.Equal(t, StateApproved, m.State)
	assert.Equal(t, number, m.Number)
	require.NotNil(t, m.Approval)
	assert.Equal(t, approver, m.Approval.ApproverID)
	require.NoError(t, m.Invariants())

	event, ok := m.PendingEvents()[0].(MembershipApproved)
	require.True(t, ok)
	assert.Equal(t, number, event.MembershipNumber)
}

func TestActivate_RequiresApprovalPaymentAndLeafGeography(t *testing.T) {
	m := newDraft(t)
	advance(t, m, StateApproved)

	t.Run("missing payment reference", func(t *testing.T) {
		err := m.CanActivate("", resolvedGeo())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("unresolved geography", func(t *testing.T) {
		err := m.CanActivate("PX1", textGeo())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("activates with full evidence", func(t *testing.T) {
		require.NoError(t, m.CanActivate("PX1", resolvedGeo()))
		m.ApplyActivate("PX1", resolvedGeo(), now)
		assert.Equal(t, StateActive, m.State)
		assert.Equal(t, "PX1", m.PaymentRef)
		assert.True(t, m.Geography.Resolved())
		require.NoError(t, m.Invariants())
	})
}

func TestSuspendAndReactivate_PreserveRecord(t *testing.T) {
	m := newDraft(t)
	advance(t, m, StateActive)
	actor := id.ActorID(uuid.New())

	require.NoError(t, m.CanSuspend(actor, "dues arrears"))
	m.ApplySuspend(actor, "dues arrears", now)
	assert.Equal(t, StateSuspended, m.State)
	require.NotNil(t, m.Suspension)
	assert.Nil(t, m.Suspension.LiftedAt)
	require.NoError(t, m.Invariants())

	later := now.Add(48 * time.Hour)
	require.NoError(t, m.CanReactivate(actor))
	m.ApplyReactivate(actor, later)
	assert.Equal(t, StateActive, m.State)
	require.NotNil(t, m.Suspension.LiftedAt)
	assert.Equal(t, later, *m.Suspension.LiftedAt)
}

// Active has two inbound edges, so the edge table alone cannot tell a first
// activation from a reactivation. Each command must also pin where it starts.
func TestActiveInboundEdges_PinTheSourceState(t *testing.T) {
	actor := id.ActorID(uuid.New())

	t.Run("reactivate on approved is rejected", func(t *testing.T) {
		m := newDraft(t)
		advance(t, m, StateApproved)

		err := m.CanReactivate(actor)
		require.Error(t, err)
		ite, ok := AsInvalidTransition(err)
		require.True(t, ok)
		assert.Equal(t, StateApproved, ite.From)
		assert.Equal(t, StateActive, ite.To)
		assert.Equal(t, StateApproved, m.State)
		assert.Empty(t, m.PaymentRef)
	})

	t.Run("activate on suspended is rejected", func(t *testing.T) {
		m := newDraft(t)
		advance(t, m, StateSuspended)

		err := m.CanActivate(m.PaymentRef, m.Geography)
		require.Error(t, err)
		ite, ok := AsInvalidTransition(err)
		require.True(t, ok)
		assert.Equal(t, StateSuspended, ite.From)
		assert.Nil(t, m.Suspension.LiftedAt)
	})

	t.Run("pinned enter check mirrors the guards", func(t *testing.T) {
		m := newDraft(t)
		advance(t, m, StateSuspended)

		require.Error(t, m.CanEnterFrom(StateApproved, StateActive))
		require.NoError(t, m.CanEnterFrom(StateSuspended, StateActive))
	})
}

func TestTerminated_IsAbsorbing(t *testing.T) {
	m := newDraft(t)
	advance(t, m, StateTerminated)
	actor := id.ActorID(uuid.New())

	checks := []error{
		m.CanSubmit(textGeo()),
		m.CanApprove(actor, id.FormatMembershipNumber("PDA", 2026, "FULL", 9)),
		m.CanReject(actor, "r"),
		m.CanActivate("PX1", resolvedGeo()),
		m.CanSuspend(actor, "r"),
		m.CanReactivate(actor),
		m.CanTerminate(actor, "again"),
	}
	for i, err := range checks {
		require.Error(t, err, "check %d", i)
		assert.True(t, IsTerminatedErr(err), "check %d should report the absorbing state", i)
	}
}

func TestRejected_IsAbsorbing(t *testing.T) {
	m := newDraft(t)
	advance(t, m, StateRejected)

	err := m.CanApprove(id.ActorID(uuid.New()), id.FormatMembershipNumber("PDA", 2026, "FULL", 2))
	require.Error(t, err)
	assert.True(t, IsTerminatedErr(err))
}

func TestTerminate_FromEveryNonTerminalState(t *testing.T) {
	for _, start := range []State{StateDraft, StatePending, StateApproved, StateActive, StateSuspended} {
		t.Run(string(start), func(t *testing.T) {
			m := newDraft(t)
			advance(t, m, start)
			actor := id.ActorID(uuid.New())

			require.NoError(t, m.CanTerminate(actor, "cleanup"))
			m.ApplyTerminate(actor, "cleanup", now)
			assert.Equal(t, StateTerminated, m.State)
			require.NotNil(t, m.Termination)
			require.NoError(t, m.Invariants())
		})
	}
}

func TestClone_IsDeepAndDropsPendingEvents(t *testing.T) {
	m := newDraft(t)
	advance(t, m, StateActive)
	m.ApplySuspend(id.ActorID(uuid.New()), "dues arrears", now)

	clone := m.Clone()
	assert.Empty(t, clone.PendingEvents())

	clone.Suspension.Reason = "changed"
	assert.Equal(t, "dues arrears", m.Suspension.Reason)
}

// TestTransitions_RandomWalk drives random command sequences and asserts the
// aggregate only ever moves along edges in the transition table, emits one
// event per successful transition, and keeps its invariants.
func TestTransitions_RandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	actor := id.ActorID(uuid.New())

	type command struct {
		target State
		can    func(m *Membership) error
		apply  func(m *Membership)
	}
	seq := int64(0)
	commands := []command{
		{StatePending, func(m *Membership) error { return m.CanSubmit(textGeo()) },
			func(m *Membership) { m.ApplySubmit(textGeo(), now) }},
		{StateApproved, func(m *Membership) error {
			seq++
			return m.CanApprove(actor, id.FormatMembershipNumber("PDA", 2026, "FULL", seq))
		}, func(m *Membership) { m.ApplyApprove(actor, id.FormatMembershipNumber("PDA", 2026, "FULL", seq), now) }},
		{StateRejected, func(m *Membership) error { return m.CanReject(actor, "r") },
			func(m *Membership) { m.ApplyReject(actor, "r", now) }},
		{StateActive, func(m *Membership) error { return m.CanActivate("PX1", resolvedGeo()) },
			func(m *Membership) { m.ApplyActivate("PX1", resolvedGeo(), now) }},
		{StateSuspended, func(m *Membership) error { return m.CanSuspend(actor, "r") },
			func(m *Membership) { m.ApplySuspend(actor, "r", now) }},
		{StateActive, func(m *Membership) error { return m.CanReactivate(actor) },
			func(m *Membership) { m.ApplyReactivate(actor, now) }},
		{StateTerminated, func(m *Membership) error { return m.CanTerminate(actor, "r") },
			func(m *Membership) { m.ApplyTerminate(actor, "r", now) }},
	}

	for run := 0; run < 200; run++ {
		m := newDraft(t)
		for step := 0; step < 20; step++ {
			before := m.State
			eventsBefore := len(m.PendingEvents())
			cmd := commands[rng.Intn(len(commands))]

			if err := cmd.can(m); err != nil {
				// A rejected command must not mutate anything.
				require.Equal(t, before, m.State)
				require.Len(t, m.PendingEvents(), eventsBefore)
				continue
			}
			require.True(t, before.CanTransitionTo(cmd.target),
				"allowed command %s -> %s outside the transition table", before, cmd.target)
			cmd.apply(m)
			require.Equal(t, cmd.target, m.State)
			require.Len(t, m.PendingEvents(), eventsBefore+1)
			require.NoError(t, m.Invariants())
		}
	}
}

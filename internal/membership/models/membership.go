package models

import (
	"time"

	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// PersonalInfo is the member-supplied identity data required before a
// registration can leave Draft.
type PersonalInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Complete reports whether the fields required for submission are present.
func (p PersonalInfo) Complete() bool {
	return p.FullName != "" && p.Email != "" && p.Phone != ""
}

// GeographyRef is a reference to a node in the party's territorial
// hierarchy. Raw is what the member supplied (free text or a node id);
// NodeID, Path, and Level are cached from the lookup service once resolved.
type GeographyRef struct {
	Raw    string      `json:"raw"`
	NodeID string      `json:"node_id,omitempty"`
	Path   string      `json:"path,omitempty"`
	Level  id.GeoLevel `json:"level,omitempty"`
}

// Present reports whether any reference was supplied, resolved or not.
func (g GeographyRef) Present() bool { return g.Raw != "" || g.NodeID != "" }

// Resolved reports whether the reference has been validated against the
// lookup service.
func (g GeographyRef) Resolved() bool { return g.NodeID != "" }

// ApprovalRecord captures who approved the application and when.
// Set exactly once, at Pending to Approved.
type ApprovalRecord struct {
	ApproverID id.ActorID `json:"approver_id"`
	At         time.Time  `json:"at"`
}

// SuspensionRecord captures the most recent suspension. LiftedAt is set when
// the member is reactivated; the record itself is never removed.
type SuspensionRecord struct {
	ActorID  id.ActorID `json:"actor_id"`
	Reason   string     `json:"reason"`
	At       time.Time  `json:"at"`
	LiftedAt *time.Time `json:"lifted_at,omitempty"`
}

// TerminationRecord captures the permanent end of a membership.
type TerminationRecord struct {
	ActorID id.ActorID `json:"actor_id"`
	Reason  string     `json:"reason"`
	At      time.Time  `json:"at"`
}

// RejectionRecord captures why a pending application was declined.
type RejectionRecord struct {
	ReviewerID id.ActorID `json:"reviewer_id"`
	Reason     string     `json:"reason"`
	At         time.Time  `json:"at"`
}

// Membership is the aggregate root for one member of one party.
//
// Invariants:
//   - Number is set if and only if State is approved, active, suspended, or
//     terminated-after-approval; it is assigned exactly once and never changes
//   - Geography is resolved before entering active and never cleared after
//   - PaymentReference is set before entering active and set exactly once
//   - Terminated and rejected are absorbing: no field mutates afterwards
//   - Version increases by exactly one per successful save; the repository
//     rejects saves against a stale version
//
// Transitions go through Can/Apply pairs. Can checks edge legality and the
// evidence the aggregate itself owns; business rules over external evidence
// live in the validator package. Apply mutates state and appends exactly one
// event carrying the version the following save will produce.
type Membership struct {
	ID          id.MemberID
	TenantID    id.TenantID
	TenantCode  string
	TypeCode    string
	Number      id.MembershipNumber
	State       State
	Person      PersonalInfo
	Geography   GeographyRef
	SponsorID   *id.MemberID
	PaymentRef  string
	Approval    *ApprovalRecord
	Suspension  *SuspensionRecord
	Termination *TerminationRecord
	Rejection   *RejectionRecord
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	pendingEvents []Event
}

// NewMembership creates a Draft aggregate. SponsorID is set at most once,
// here; there is no later operation that binds a sponsor.
func NewMembership(memberID id.MemberID, tenantID id.TenantID, tenantCode, typeCode string, person PersonalInfo, sponsorID *id.MemberID, now time.Time) (*Membership, error) {
	if memberID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "member id is required")
	}
	if tenantID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant id is required")
	}
	if tenantCode == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant code is required")
	}
	if typeCode == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "membership type code is required")
	}
	return &Membership{
		ID:         memberID,
		TenantID:   tenantID,
		TenantCode: tenantCode,
		TypeCode:   typeCode,
		State:      StateDraft,
		Person:     person,
		SponsorID:  sponsorID,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// guard rejects commands against absorbing states first so callers get the
// terminated error rather than a generic invalid transition.
func (m *Membership) guard(target State) error {
	if m.State.IsTerminal() {
		return terminated(m.State)
	}
	if !m.State.CanTransitionTo(target) {
		return invalidTransition(m.State, target)
	}
	return nil
}

// guardFrom additionally pins the source state. Active has two inbound
// edges, so checking the edge table alone would let a command enter through
// the wrong one.
func (m *Membership) guardFrom(from, target State) error {
	if err := m.guard(target); err != nil {
		return err
	}
	if m.State != from {
		return invalidTransition(m.State, target)
	}
	return nil
}

// CanEnter checks edge legality toward target without any evidence checks.
// The orchestrator uses it to reject doomed commands before it spends
// external calls or a sequence number on them.
func (m *Membership) CanEnter(target State) error {
	return m.guard(target)
}

// CanEnterFrom is CanEnter with the source state pinned.
func (m *Membership) CanEnterFrom(from, target State) error {
	return m.guardFrom(from, target)
}

// CanSubmit checks Draft to Pending: personal info complete and a geography
// reference supplied. The reference may still be unresolved free text.
func (m *Membership) CanSubmit(geo GeographyRef) error {
	if err := m.guard(StatePending); err != nil {
		return err
	}
	if !m.Person.Complete() {
		return dErrors.New(dErrors.CodeInvariantViolation, "personal info is incomplete")
	}
	if !geo.Present() {
		return dErrors.New(dErrors.CodeInvariantViolation, "geography reference is required")
	}
	return nil
}

// ApplySubmit moves Draft to Pending and records the supplied reference.
func (m *Membership) ApplySubmit(geo GeographyRef, now time.Time) {
	from := m.State
	m.State = StatePending
	m.Geography = geo
	m.UpdatedAt = now
	m.appendEvent(MembershipSubmitted{
		EventMeta:    m.eventMeta(from, StatePending, now),
		GeographyRef: geo.Raw,
		SponsorID:    m.SponsorID,
	})
}

// CanApprove checks Pending to Approved. The caller supplies the allocated
// membership number; allocation itself is the orchestrator's job so the
// aggregate stays pure.
func (m *Membership) CanApprove(approverID id.ActorID, number id.MembershipNumber) error {
	if err := m.guard(StateApproved); err != nil {
		return err
	}
	if approverID.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "approver id is required")
	}
	if number.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "membership number is required")
	}
	if !m.Number.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "membership number is already assigned")
	}
	return nil
}

// ApplyApprove assigns the membership number and approval record, both
// exactly once.
func (m *Membership) ApplyApprove(approverID id.ActorID, number id.MembershipNumber, now time.Time) {
	from := m.State
	m.State = StateApproved
	m.Number = number
	m.Approval = &ApprovalRecord{ApproverID: approverID, At: now}
	m.UpdatedAt = now
	m.appendEvent(MembershipApproved{
		EventMeta:        m.eventMeta(from, StateApproved, now),
		ApproverID:       approverID,
		MembershipNumber: number,
	})
}

// CanReject checks Pending to Rejected.
func (m *Membership) CanReject(reviewerID id.ActorID, reason string) error {
	if err := m.guard(StateRejected); err != nil {
		return err
	}
	if reviewerID.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "reviewer id is required")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "rejection reason is required")
	}
	return nil
}

// ApplyReject declines the application. Rejected is absorbing.
func (m *Membership) ApplyReject(reviewerID id.ActorID, reason string, now time.Time) {
	from := m.State
	m.State = StateRejected
	m.Rejection = &RejectionRecord{ReviewerID: reviewerID, Reason: reason, At: now}
	m.UpdatedAt = now
	m.appendEvent(MembershipRejected{
		EventMeta:  m.eventMeta(from, StateRejected, now),
		ReviewerID: reviewerID,
		Reason:     reason,
	})
}

// CanActivate checks Approved to Active: approval on record, a confirmed
// payment reference, and a geography reference resolved to leaf precision.
func (m *Membership) CanActivate(paymentRef string, geo GeographyRef) error {
	if err := m.guardFrom(StateApproved, StateActive); err != nil {
		return err
	}
	if m.Approval == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "approval record is required before activation")
	}
	if paymentRef == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "payment reference is required")
	}
	if m.PaymentRef != "" && m.PaymentRef != paymentRef {
		return dErrors.New(dErrors.CodeInvariantViolation, "payment reference is already set")
	}
	if !geo.Resolved() {
		return dErrors.New(dErrors.CodeInvariantViolation, "geography must be resolved before activation")
	}
	return nil
}

// ApplyActivate records the payment and the validated residence geography.
// Both are immutable from here on.
func (m *Membership) ApplyActivate(paymentRef string, geo GeographyRef, now time.Time) {
	from := m.State
	m.State = StateActive
	m.PaymentRef = paymentRef
	m.Geography = geo
	m.UpdatedAt = now
	m.appendEvent(MembershipActivated{
		EventMeta:        m.eventMeta(from, StateActive, now),
		MembershipNumber: m.Number,
		GeographyRef:     geo.NodeID,
		PaymentReference: paymentRef,
	})
}

// CanSuspend checks Active to Suspended.
func (m *Membership) CanSuspend(actorID id.ActorID, reason string) error {
	if err := m.guard(StateSuspended); err != nil {
		return err
	}
	if actorID.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "actor id is required")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "suspension reason is required")
	}
	return nil
}

// ApplySuspend records the suspension. The record survives reactivation.
func (m *Membership) ApplySuspend(actorID id.ActorID, reason string, now time.Time) {
	from := m.State
	m.State = StateSuspended
	m.Suspension = &SuspensionRecord{ActorID: actorID, Reason: reason, At: now}
	m.UpdatedAt = now
	m.appendEvent(MembershipSuspended{
		EventMeta: m.eventMeta(from, StateSuspended, now),
		ActorID:   actorID,
		Reason:    reason,
	})
}

// CanReactivate checks Suspended back to Active.
func (m *Membership) CanReactivate(actorID id.ActorID) error {
	if err := m.guardFrom(StateSuspended, StateActive); err != nil {
		return err
	}
	if actorID.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "actor id is required")
	}
	return nil
}

// ApplyReactivate lifts the suspension.
func (m *Membership) ApplyReactivate(actorID id.ActorID, now time.Time) {
	from := m.State
	m.State = StateActive
	if m.Suspension != nil {
		lifted := now
		m.Suspension.LiftedAt = &lifted
	}
	m.UpdatedAt = now
	m.appendEvent(MembershipReactivated{
		EventMeta: m.eventMeta(from, StateActive, now),
		ActorID:   actorID,
	})
}

// CanTerminate checks any non-terminal state to Terminated.
func (m *Membership) CanTerminate(actorID id.ActorID, reason string) error {
	if err := m.guard(StateTerminated); err != nil {
		return err
	}
	if actorID.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "actor id is required")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "termination reason is required")
	}
	return nil
}

// ApplyTerminate ends the membership permanently. The row is never deleted;
// terminated is the logical deletion state for audit retention.
func (m *Membership) ApplyTerminate(actorID id.ActorID, reason string, now time.Time) {
	from := m.State
	m.State = StateTerminated
	m.Termination = &TerminationRecord{ActorID: actorID, Reason: reason, At: now}
	m.UpdatedAt = now
	m.appendEvent(MembershipTerminated{
		EventMeta: m.eventMeta(from, StateTerminated, now),
		ActorID:   actorID,
		Reason:    reason,
	})
}

// eventMeta stamps the envelope with the version the next save produces.
// Exactly one save follows each applied transition.
func (m *Membership) eventMeta(from, to State, now time.Time) EventMeta {
	return EventMeta{
		MemberID:   m.ID,
		TenantID:   m.TenantID,
		FromState:  from,
		ToState:    to,
		Version:    m.Version + 1,
		OccurredAt: now,
	}
}

func (m *Membership) appendEvent(e Event) {
	m.pendingEvents = append(m.pendingEvents, e)
}

// PendingEvents returns the events produced since the last successful
// publish, oldest first.
func (m *Membership) PendingEvents() []Event {
	out := make([]Event, len(m.pendingEvents))
	copy(out, m.pendingEvents)
	return out
}

// ClearPendingEvents drops the pending list after a successful hand-off to
// the publisher.
func (m *Membership) ClearPendingEvents() {
	m.pendingEvents = nil
}

// Clone returns a deep copy so stores never hand out shared mutable state.
// Pending events are deliberately not copied: they belong to the in-flight
// command, not to persisted snapshots.
func (m *Membership) Clone() *Membership {
	clone := *m
	clone.pendingEvents = nil
	if m.SponsorID != nil {
		sponsor := *m.SponsorID
		clone.SponsorID = &sponsor
	}
	if m.Approval != nil {
		approval := *m.Approval
		clone.Approval = &approval
	}
	if m.Suspension != nil {
		suspension := *m.Suspension
		if m.Suspension.LiftedAt != nil {
			lifted := *m.Suspension.LiftedAt
			suspension.LiftedAt = &lifted
		}
		clone.Suspension = &suspension
	}
	if m.Termination != nil {
		termination := *m.Termination
		clone.Termination = &termination
	}
	if m.Rejection != nil {
		rejection := *m.Rejection
		clone.Rejection = &rejection
	}
	return &clone
}

// Invariants checks the field/state consistency rules from the lifecycle
// contract. Tests run it after every transition; stores may run it before a
// save as a cheap corruption guard.
func (m *Membership) Invariants() error {
	numberStates := map[State]bool{StateApproved: true, StateActive: true, StateSuspended: true}
	switch {
	case m.Number.IsZero() && numberStates[m.State]:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "state %s requires a membership number", m.State)
	case !m.Number.IsZero() && (m.State == StateDraft || m.State == StatePending):
		return dErrors.Newf(dErrors.CodeInvariantViolation, "state %s must not carry a membership number", m.State)
	}

	activeStates := map[State]bool{StateActive: true, StateSuspended: true}
	if activeStates[m.State] {
		if !m.Geography.Resolved() {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "state %s requires a resolved geography", m.State)
		}
		if m.PaymentRef == "" {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "state %s requires a payment reference", m.State)
		}
	}

	if m.State == StateRejected && m.Rejection == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "rejected state requires a rejection record")
	}
	if m.State == StateTerminated && m.Termination == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "terminated state requires a termination record")
	}
	if !m.State.IsValid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown state %q", m.State)
	}
	return nil
}

package models

import (
	"time"

	id "quorum/pkg/domain"
)

// Event names, one per lifecycle transition. Downstream contexts (finance,
// forums, scoring) key their idempotency on (member id, event name, version).
const (
	EventMembershipSubmitted   = "membership.submitted"
	EventMembershipApproved    = "membership.approved"
	EventMembershipRejected    = "membership.rejected"
	EventMembershipActivated   = "membership.activated"
	EventMembershipSuspended   = "membership.suspended"
	EventMembershipReactivated = "membership.reactivated"
	EventMembershipTerminated  = "membership.terminated"
)

// EventMeta is the envelope data every lifecycle event carries. Version is
// the aggregate version the accompanying save produces, so consumers can
// order and deduplicate deliveries.
type EventMeta struct {
	MemberID   id.MemberID `json:"member_id"`
	TenantID   id.TenantID `json:"tenant_id"`
	FromState  State       `json:"from_state"`
	ToState    State       `json:"to_state"`
	Version    int64       `json:"version"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Event is a lifecycle fact. Events are immutable value records; nothing
// mutates one after Apply appends it to the aggregate's pending list.
type Event interface {
	Name() string
	Meta() EventMeta
}

type MembershipSubmitted struct {
	EventMeta
	GeographyRef string       `json:"geography_ref"`
	SponsorID    *id.MemberID `json:"sponsor_id,omitempty"`
}

type MembershipApproved struct {
	EventMeta
	ApproverID       id.ActorID          `json:"approver_id"`
	MembershipNumber id.MembershipNumber `json:"membership_number"`
}

type MembershipRejected struct {
	EventMeta
	ReviewerID id.ActorID `json:"reviewer_id"`
	Reason     string     `json:"reason"`
}

type MembershipActivated struct {
	EventMeta
	MembershipNumber id.MembershipNumber `json:"membership_number"`
	GeographyRef     string              `json:"geography_ref"`
	PaymentReference string              `json:"payment_reference"`
}

type MembershipSuspended struct {
	EventMeta
	ActorID id.ActorID `json:"actor_id"`
	Reason  string     `json:"reason"`
}

type MembershipReactivated struct {
	EventMeta
	ActorID id.ActorID `json:"actor_id"`
}

type MembershipTerminated struct {
	EventMeta
	ActorID id.ActorID `json:"actor_id"`
	Reason  string     `json:"reason"`
}

func (MembershipSubmitted) Name() string   { return EventMembershipSubmitted }
func (MembershipApproved) Name() string    { return EventMembershipApproved }
func (MembershipRejected) Name() string    { return EventMembershipRejected }
func (MembershipActivated) Name() string   { return EventMembershipActivated }
func (MembershipSuspended) Name() string   { return EventMembershipSuspended }
func (MembershipReactivated) Name() string { return EventMembershipReactivated }
func (MembershipTerminated) Name() string  { return EventMembershipTerminated }

func (e MembershipSubmitted) Meta() EventMeta   { return e.EventMeta }
func (e MembershipApproved) Meta() EventMeta    { return e.EventMeta }
func (e MembershipRejected) Meta() EventMeta    { return e.EventMeta }
func (e MembershipActivated) Meta() EventMeta   { return e.EventMeta }
func (e MembershipSuspended) Meta() EventMeta   { return e.EventMeta }
func (e MembershipReactivated) Meta() EventMeta { return e.EventMeta }
func (e MembershipTerminated) Meta() EventMeta  { return e.EventMeta }

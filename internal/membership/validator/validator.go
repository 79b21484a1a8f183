// Package validator holds the pure transition guards. Every function takes
// an aggregate snapshot plus evidence values and performs no I/O: the
// orchestrator gathers external facts (geography resolution, payment
// confirmation, duplicate checks, sponsor state) and passes them in.
package validator

import (
	"quorum/internal/membership/models"
	id "quorum/pkg/domain"
)

// Reason is a typed business-rule rejection. The orchestrator surfaces it
// verbatim to the caller; reasons are never retried automatically.
type Reason string

const (
	ReasonMissingEvidence     Reason = "missing_evidence"
	ReasonGeographyUnresolved Reason = "geography_unresolved"
	ReasonGeographyTooCoarse  Reason = "geography_too_coarse"
	ReasonSponsorIneligible   Reason = "sponsor_ineligible"
	ReasonDuplicateIdentity   Reason = "duplicate_identity"
	ReasonPaymentInsufficient Reason = "payment_insufficient"
	ReasonPaymentUnconfirmed  Reason = "payment_unconfirmed"
)

// Result is Ok or a typed failure reason with a human-readable detail.
type Result struct {
	Reason Reason
	Detail string
}

// Ok reports whether the guard passed.
func (r Result) Ok() bool { return r.Reason == "" }

func ok() Result { return Result{} }

func fail(reason Reason, detail string) Result {
	return Result{Reason: reason, Detail: detail}
}

// Config carries the tenant-level policy knobs the guards evaluate against.
// Geography-for-activation is configurable because party bylaws differ on
// whether a member must be placed in a ward before activation.
type Config struct {
	// MinimumApprovalLevel is the coarsest geography precision acceptable
	// at approval time.
	MinimumApprovalLevel id.GeoLevel
	// MinimumDues maps membership type code to the smallest accepted
	// payment amount, in minor currency units.
	MinimumDues map[string]int64
	// RequireGeographyForActivation demands leaf-level residence precision
	// before Active. When false, any resolved node suffices; activation
	// always needs a resolved reference. Defaults to true.
	RequireGeographyForActivation bool
}

// DefaultConfig matches the common tenant setup.
func DefaultConfig() Config {
	return Config{
		MinimumApprovalLevel:          id.GeoLevelConstituency,
		MinimumDues:                   map[string]int64{},
		RequireGeographyForActivation: true,
	}
}

// ApprovalEvidence is everything external the approval guard needs,
// pre-fetched by the orchestrator.
type ApprovalEvidence struct {
	ApproverID id.ActorID
	// GeographyResolved is the lookup result for the member's reference;
	// nil when the lookup found nothing.
	GeographyResolved *models.GeographyRef
	// DuplicateIdentity is true when another aggregate in the tenant
	// already owns the member's phone, email, or membership number.
	DuplicateIdentity bool
	// SponsorState is the sponsor aggregate's current state; empty when
	// the member has no sponsor.
	SponsorState models.State
}

// ActivationEvidence is everything external the activation guard needs.
type ActivationEvidence struct {
	PaymentRef string
	// PaymentConfirmed and PaymentAmount come from the payment service.
	PaymentConfirmed bool
	PaymentAmount    int64
	// GeographyResolved is the freshly re-validated residence node.
	GeographyResolved *models.GeographyRef
}

// CanSubmit checks that the snapshot carries complete personal info and a
// geography reference of at least text tier.
func CanSubmit(snapshot *models.Membership, geo models.GeographyRef) Result {
	if !snapshot.Person.Complete() {
		return fail(ReasonMissingEvidence, "personal info is incomplete")
	}
	if !geo.Present() {
		return fail(ReasonMissingEvidence, "geography reference is required")
	}
	return ok()
}

// CanApprove checks the business rules for Pending to Approved:
// no duplicate identity, a geography reference resolving at or below the
// minimum level, and a sponsor (when present) that is Active or Approved.
func CanApprove(snapshot *models.Membership, evidence ApprovalEvidence, cfg Config) Result {
	if evidence.ApproverID.IsZero() {
		return fail(ReasonMissingEvidence, "approver id is required")
	}
	if evidence.DuplicateIdentity {
		return fail(ReasonDuplicateIdentity, "identity already bound to another membership")
	}
	if evidence.GeographyResolved == nil || !evidence.GeographyResolved.Resolved() {
		return fail(ReasonGeographyUnresolved, "geography reference did not resolve")
	}
	if !evidence.GeographyResolved.Level.AtOrBelow(cfg.MinimumApprovalLevel) {
		return fail(ReasonGeographyTooCoarse, "geography resolves above the minimum required level")
	}
	if snapshot.SponsorID != nil {
		switch evidence.SponsorState {
		case models.StateActive, models.StateApproved:
		default:
			return fail(ReasonSponsorIneligible, "sponsor is not active or approved")
		}
	}
	return ok()
}

// CanActivate checks the business rules for Approved to Active: approval on
// record, a confirmed payment meeting the type's minimum dues, and residence
// geography at leaf precision when the tenant requires it.
func CanActivate(snapshot *models.Membership, evidence ActivationEvidence, cfg Config) Result {
	if snapshot.Approval == nil {
		return fail(ReasonMissingEvidence, "approval record is required")
	}
	if evidence.PaymentRef == "" {
		return fail(ReasonMissingEvidence, "payment reference is required")
	}
	if !evidence.PaymentConfirmed {
		return fail(ReasonPaymentUnconfirmed, "payment is not confirmed")
	}
	if evidence.PaymentAmount < cfg.MinimumDues[snapshot.TypeCode] {
		return fail(ReasonPaymentInsufficient, "payment amount is below the minimum dues")
	}
	if evidence.GeographyResolved == nil || !evidence.GeographyResolved.Resolved() {
		return fail(ReasonGeographyUnresolved, "residence geography did not resolve")
	}
	if cfg.RequireGeographyForActivation && !evidence.GeographyResolved.Level.IsLeaf() {
		return fail(ReasonGeographyTooCoarse, "residence geography must resolve to a leaf node")
	}
	return ok()
}

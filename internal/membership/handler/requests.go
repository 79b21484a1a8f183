package handler

import (
	"strings"

	"quorum/internal/membership/models"
	"quorum/internal/membership/service"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// SubmitRequest is the HTTP request body for POST /memberships. The caller
// supplies the member id so retried registrations stay idempotent.
type SubmitRequest struct {
	MemberID     string  `json:"member_id"`
	TenantID     string  `json:"tenant_id"`
	TenantCode   string  `json:"tenant_code"`
	TypeCode     string  `json:"type_code"`
	FullName     string  `json:"full_name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	GeographyRef string  `json:"geography_ref"`
	SponsorID    *string `json:"sponsor_id,omitempty"`

	// Parsed values (populated by Validate)
	parsed service.SubmitInput
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	memberID, err := id.ParseMemberID(r.MemberID)
	if err != nil {
		return err
	}
	tenantID, err := id.ParseTenantID(r.TenantID)
	if err != nil {
		return err
	}

	r.TenantCode = strings.ToUpper(strings.TrimSpace(r.TenantCode))
	if r.TenantCode == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant_code is required")
	}
	r.TypeCode = strings.ToUpper(strings.TrimSpace(r.TypeCode))
	if r.TypeCode == "" {
		return dErrors.New(dErrors.CodeValidation, "type_code is required")
	}

	var sponsorID *id.MemberID
	if r.SponsorID != nil {
		parsed, err := id.ParseMemberID(*r.SponsorID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "sponsor_id is invalid")
		}
		sponsorID = &parsed
	}

	r.parsed = service.SubmitInput{
		MemberID:   memberID,
		TenantID:   tenantID,
		TenantCode: r.TenantCode,
		TypeCode:   r.TypeCode,
		Person: models.PersonalInfo{
			FullName: strings.TrimSpace(r.FullName),
			Email:    strings.TrimSpace(r.Email),
			Phone:    strings.TrimSpace(r.Phone),
		},
		GeographyRef: strings.TrimSpace(r.GeographyRef),
		SponsorID:    sponsorID,
	}
	return nil
}

// Input returns the parsed submit input.
func (r *SubmitRequest) Input() service.SubmitInput { return r.parsed }

// ApproveRequest is the body for POST /memberships/{id}/approve.
type ApproveRequest struct {
	ApproverID string `json:"approver_id"`

	parsedApprover id.ActorID
}

func (r *ApproveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	approver, err := id.ParseActorID(r.ApproverID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "approver_id is invalid")
	}
	r.parsedApprover = approver
	return nil
}

// RejectRequest is the body for POST /memberships/{id}/reject.
type RejectRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason"`

	parsedReviewer id.ActorID
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	reviewer, err := id.ParseActorID(r.ReviewerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "reviewer_id is invalid")
	}
	r.parsedReviewer = reviewer
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

// PaymentRequest is the body for POST /memberships/{id}/payment.
type PaymentRequest struct {
	PaymentRef string `json:"payment_ref"`
	Amount     int64  `json:"amount"`
}

func (r *PaymentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.PaymentRef = strings.TrimSpace(r.PaymentRef)
	if r.PaymentRef == "" {
		return dErrors.New(dErrors.CodeValidation, "payment_ref is required")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

// ActorActionRequest is the shared body for suspend, reactivate, and
// terminate. Reason is required for suspend and terminate only.
type ActorActionRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`

	parsedActor id.ActorID
}

func (r *ActorActionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	actor, err := id.ParseActorID(r.ActorID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "actor_id is invalid")
	}
	r.parsedActor = actor
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

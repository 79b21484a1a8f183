package handler

import (
	"time"

	"quorum/internal/membership/models"
)

// MembershipResponse is the HTTP representation of a membership aggregate.
type MembershipResponse struct {
	ID               string             `json:"id"`
	TenantID         string             `json:"tenant_id"`
	TenantCode       string             `json:"tenant_code"`
	TypeCode         string             `json:"type_code"`
	Number           string             `json:"number,omitempty"`
	State            string             `json:"state"`
	FullName         string             `json:"full_name"`
	Email            string             `json:"email"`
	Phone            string             `json:"phone"`
	Geography        *GeographyResponse `json:"geography,omitempty"`
	SponsorID        *string            `json:"sponsor_id,omitempty"`
	PaymentReference string             `json:"payment_reference,omitempty"`
	Approval         *ActionResponse    `json:"approval,omitempty"`
	Suspension       *ActionResponse    `json:"suspension,omitempty"`
	Termination      *ActionResponse    `json:"termination,omitempty"`
	Rejection        *ActionResponse    `json:"rejection,omitempty"`
	Version          int64              `json:"version"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// GeographyResponse is the geography portion of the response.
type GeographyResponse struct {
	Raw    string `json:"raw,omitempty"`
	NodeID string `json:"node_id,omitempty"`
	Path   string `json:"path,omitempty"`
	Level  string `json:"level,omitempty"`
}

// ActionResponse reports who acted, why, and when.
type ActionResponse struct {
	ActorID  string     `json:"actor_id"`
	Reason   string     `json:"reason,omitempty"`
	At       time.Time  `json:"at"`
	LiftedAt *time.Time `json:"lifted_at,omitempty"`
}

// FromMembership converts an aggregate snapshot to an HTTP response.
func FromMembership(m *models.Membership) *MembershipResponse {
	resp := &MembershipResponse{
		ID:               m.ID.String(),
		TenantID:         m.TenantID.String(),
		TenantCode:       m.TenantCode,
		TypeCode:         m.TypeCode,
		Number:           m.Number.String(),
		State:            m.State.String(),
		FullName:         m.Person.FullName,
		Email:            m.Person.Email,
		Phone:            m.Person.Phone,
		PaymentReference: m.PaymentRef,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.Geography.Present() {
		resp.Geography = &GeographyResponse{
			Raw:    m.Geography.Raw,
			NodeID: m.Geography.NodeID,
			Path:   m.Geography.Path,
			Level:  string(m.Geography.Level),
		}
	}
	if m.SponsorID != nil {
		sponsor := m.SponsorID.String()
		resp.SponsorID = &sponsor
	}
	if m.Approval != nil {
		resp.Approval = &ActionResponse{ActorID: m.Approval.ApproverID.String(), At: m.Approval.At}
	}
	if m.Suspension != nil {
		resp.Suspension = &ActionResponse{
			ActorID:  m.Suspension.ActorID.String(),
			Reason:   m.Suspension.Reason,
			At:       m.Suspension.At,
			LiftedAt: m.Suspension.LiftedAt,
		}
	}
	if m.Termination != nil {
		resp.Termination = &ActionResponse{ActorID: m.Termination.ActorID.String(), Reason: m.Termination.Reason, At: m.Termination.At}
	}
	if m.Rejection != nil {
		resp.Rejection = &ActionResponse{ActorID: m.Rejection.ReviewerID.String(), Reason: m.Rejection.Reason, At: m.Rejection.At}
	}
	return resp
}

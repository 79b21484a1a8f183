// Package domain holds the identifier types shared across bounded contexts.
// Distinct named types keep member, tenant, and actor ids from being
// swapped at call sites; the compiler enforces the distinction.
package domain

import (
	"github.com/google/uuid"

	dErrors "quorum/pkg/domain-errors"
)

// MemberID identifies a membership aggregate.
type MemberID uuid.UUID

// TenantID identifies a party (tenant). Every command carries one
// explicitly; nothing reads tenancy from ambient state.
type TenantID uuid.UUID

// ActorID identifies the person performing an administrative action
// (approver, reviewer, suspending officer).
type ActorID uuid.UUID

func (id MemberID) String() string { return uuid.UUID(id).String() }
func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id ActorID) String() string  { return uuid.UUID(id).String() }

func (id MemberID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps the canonical UUID form in JSON and keys; the
// defined types would otherwise encode as raw byte arrays.

func (id MemberID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id TenantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ActorID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *MemberID) UnmarshalText(raw []byte) error {
	parsed, err := ParseMemberID(string(raw))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TenantID) UnmarshalText(raw []byte) error {
	parsed, err := ParseTenantID(string(raw))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ActorID) UnmarshalText(raw []byte) error {
	parsed, err := ParseActorID(string(raw))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewMemberID allocates a fresh member id.
func NewMemberID() MemberID { return MemberID(uuid.New()) }

// ParseMemberID parses a member id, rejecting empty, malformed, and nil values.
func ParseMemberID(raw string) (MemberID, error) {
	parsed, err := parseUUID(raw, "member id")
	return MemberID(parsed), err
}

// ParseTenantID parses a tenant id, rejecting empty, malformed, and nil values.
func ParseTenantID(raw string) (TenantID, error) {
	parsed, err := parseUUID(raw, "tenant id")
	return TenantID(parsed), err
}

// ParseActorID parses an actor id, rejecting empty, malformed, and nil values.
func ParseActorID(raw string) (ActorID, error) {
	parsed, err := parseUUID(raw, "actor id")
	return ActorID(parsed), err
}

func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s must not be empty", what)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s is not a valid UUID", what)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s must not be the nil UUID", what)
	}
	return parsed, nil
}

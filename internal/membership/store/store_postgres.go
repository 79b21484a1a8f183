package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"quorum/internal/membership/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/platform/tx"
)

// Postgres persists aggregates in the memberships table. Lifecycle records
// (approval, suspension, termination, rejection) live in JSONB columns since
// nothing queries their fields relationally. The store honours a
// context-carried transaction so a save and a sequence allocation commit
// together.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const membershipColumns = `
	id, tenant_id, tenant_code, type_code, number, state,
	full_name, email, phone,
	geo_raw, geo_node_id, geo_path, geo_level,
	sponsor_id, payment_ref,
	approval, suspension, termination, rejection,
	version, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1, $20, $21)
	`
	approval, suspension, termination, rejection, err := marshalRecords(m)
	if err != nil {
		return err
	}
	var sponsor any
	if m.SponsorID != nil {
		sponsor = m.SponsorID.String()
	}
	_, err = tx.DB(ctx, s.db).ExecContext(ctx, query,
		m.ID.String(), m.TenantID.String(), m.TenantCode, m.TypeCode, nullableString(m.Number.String()), string(m.State),
		m.Person.FullName, m.Person.Email, m.Person.Phone,
		m.Geography.Raw, m.Geography.NodeID, m.Geography.Path, string(m.Geography.Level),
		sponsor, m.PaymentRef,
		approval, suspension, termination, rejection,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create membership: %w", err)
	}
	m.Version = 1
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, memberID id.MemberID) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1`
	m, err := scanMembership(tx.DB(ctx, s.db).QueryRowContext(ctx, query, memberID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return m, nil
}

// Save updates the row guarded by the expected version. Zero rows affected
// means either the row vanished or another writer won; the caller reloads to
// tell the two apart, so both surface as ErrConflict here when the row still
// exists and ErrNotFound when it does not.
func (s *Postgres) Save(ctx context.Context, m *models.Membership, expectedVersion int64) error {
	query := `
		UPDATE memberships SET
			number = $3, state = $4,
			full_name = $5, email = $6, phone = $7,
			geo_raw = $8, geo_node_id = $9, geo_path = $10, geo_level = $11,
			payment_ref = $12,
			approval = $13, suspension = $14, termination = $15, rejection = $16,
			version = $2 + 1, updated_at = $17
		WHERE id = $1 AND version = $2
	`
	approval, suspension, termination, rejection, err := marshalRecords(m)
	if err != nil {
		return err
	}
	res, err := tx.DB(ctx, s.db).ExecContext(ctx, query,
		m.ID.String(), expectedVersion,
		nullableString(m.Number.String()), string(m.State),
		m.Person.FullName, m.Person.Email, m.Person.Phone,
		m.Geography.Raw, m.Geography.NodeID, m.Geography.Path, string(m.Geography.Level),
		m.PaymentRef,
		approval, suspension, termination, rejection,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save membership: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.DB(ctx, s.db).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM memberships WHERE id = $1)`, m.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("save membership: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	m.Version = expectedVersion + 1
	return nil
}

func (s *Postgres) IdentityInUse(ctx context.Context, tenantID id.TenantID, person models.PersonalInfo, excludeID id.MemberID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM memberships
			WHERE tenant_id = $1 AND id <> $2
			AND (lower(email) = lower($3) OR phone = $4)
		)
	`
	var inUse bool
	err := tx.DB(ctx, s.db).QueryRowContext(ctx, query,
		tenantID.String(), excludeID.String(), person.Email, person.Phone).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("identity lookup: %w", err)
	}
	return inUse, nil
}

func marshalRecords(m *models.Membership) (approval, suspension, termination, rejection []byte, err error) {
	marshal := func(v any) ([]byte, error) {
		if v == nil {
			return nil, nil
		}
		return json.Marshal(v)
	}
	if m.Approval != nil {
		if approval, err = marshal(m.Approval); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal approval: %w", err)
		}
	}
	if m.Suspension != nil {
		if suspension, err = marshal(m.Suspension); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal suspension: %w", err)
		}
	}
	if m.Termination != nil {
		if termination, err = marshal(m.Termination); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal termination: %w", err)
		}
	}
	if m.Rejection != nil {
		if rejection, err = marshal(m.Rejection); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal rejection: %w", err)
		}
	}
	return approval, suspension, termination, rejection, nil
}

func scanMembership(row *sql.Row) (*models.Membership, error) {
	var (
		m                                           models.Membership
		rawID, rawTenant, state, geoLevel           string
		number, sponsor                             sql.NullString
		approval, suspension, termination, rejected []byte
	)
	err := row.Scan(
		&rawID, &rawTenant, &m.TenantCode, &m.TypeCode, &number, &state,
		&m.Person.FullName, &m.Person.Email, &m.Person.Phone,
		&m.Geography.Raw, &m.Geography.NodeID, &m.Geography.Path, &geoLevel,
		&sponsor, &m.PaymentRef,
		&approval, &suspension, &termination, &rejected,
		&m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	memberID, err := id.ParseMemberID(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored member id: %w", err)
	}
	tenantID, err := id.ParseTenantID(rawTenant)
	if err != nil {
		return nil, fmt.Errorf("stored tenant id: %w", err)
	}
	m.ID = memberID
	m.TenantID = tenantID
	m.State = models.State(state)
	m.Geography.Level = id.GeoLevel(geoLevel)
	if number.Valid {
		m.Number = id.MembershipNumber(number.String)
	}
	if sponsor.Valid {
		sponsorID, err := id.ParseMemberID(sponsor.String)
		if err != nil {
			return nil, fmt.Errorf("stored sponsor id: %w", err)
		}
		m.SponsorID = &sponsorID
	}

	unmarshal := func(raw []byte, into any, what string) error {
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, into); err != nil {
			return fmt.Errorf("unmarshal %s: %w", what, err)
		}
		return nil
	}
	m.Approval = new(models.ApprovalRecord)
	if err := unmarshal(approval, m.Approval, "approval"); err != nil {
		return nil, err
	}
	if len(approval) == 0 {
		m.Approval = nil
	}
	m.Suspension = new(models.SuspensionRecord)
	if err := unmarshal(suspension, m.Suspension, "suspension"); err != nil {
		return nil, err
	}
	if len(suspension) == 0 {
		m.Suspension = nil
	}
	m.Termination = new(models.TerminationRecord)
	if err := unmarshal(termination, m.Termination, "termination"); err != nil {
		return nil, err
	}
	if len(termination) == 0 {
		m.Termination = nil
	}
	m.Rejection = new(models.RejectionRecord)
	if err := unmarshal(rejected, m.Rejection, "rejection"); err != nil {
		return nil, err
	}
	if len(rejected) == 0 {
		m.Rejection = nil
	}
	return &m, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

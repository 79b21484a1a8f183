//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/membership/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/testutil/containers"
)

func newPostgresFixture(t *testing.T, tenantID id.TenantID, email, phone string) *models.Membership {
	t.Helper()
	m, err := models.NewMembership(
		id.NewMemberID(),
		tenantID,
		"PDA",
		"FULL",
		models.PersonalInfo{FullName: "Asha Okello", Email: email, Phone: phone},
		nil,
		time.Now(),
	)
	require.NoError(t, err)
	return m
}

func TestPostgresStoreIntegration(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "../../../scripts/schema.sql")
	store := NewPostgres(pg.DB)
	ctx := context.Background()

	t.Run("roundtrips the full aggregate", func(t *testing.T) {
		tenantID := id.TenantID(uuid.New())
		m := newPostgresFixture(t, tenantID, "asha@example.org", "+254700000001")
		require.NoError(t, store.Create(ctx, m))
		require.Equal(t, int64(1), m.Version)

		m.ApplySubmit(models.GeographyRef{Raw: "text:Ward5"}, time.Now())
		approver := id.ActorID(uuid.New())
		m.ApplyApprove(approver, id.FormatMembershipNumber("PDA", 2026, "FULL", 7), time.Now())
		m.Geography = models.GeographyRef{
			Raw: "text:Ward5", NodeID: "geo-ward-5", Path: "KE/Nairobi/Westlands/Ward5", Level: id.GeoLevelWard,
		}
		m.ApplyActivate("pay-123", m.Geography, time.Now())
		require.NoError(t, store.Save(ctx, m, 1))
		require.Equal(t, int64(2), m.Version)

		found, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateActive, found.State)
		assert.Equal(t, id.MembershipNumber("PDA-2026-FULL-000007"), found.Number)
		assert.Equal(t, "pay-123", found.PaymentRef)
		assert.Equal(t, "geo-ward-5", found.Geography.NodeID)
		assert.Equal(t, id.GeoLevelWard, found.Geography.Level)
		require.NotNil(t, found.Approval)
		assert.Equal(t, approver, found.Approval.ApproverID)
		assert.Nil(t, found.Suspension)
		assert.NoError(t, found.Invariants())
	})

	t.Run("stale save conflicts, missing save reports not found", func(t *testing.T) {
		m := newPostgresFixture(t, id.TenantID(uuid.New()), "b@example.org", "+254700000002")
		require.NoError(t, store.Create(ctx, m))

		m.ApplySubmit(models.GeographyRef{Raw: "text:Ward5"}, time.Now())
		require.NoError(t, store.Save(ctx, m, 1))

		stale := m.Clone()
		require.ErrorIs(t, store.Save(ctx, stale, 1), sentinel.ErrConflict)

		ghost := newPostgresFixture(t, id.TenantID(uuid.New()), "g@example.org", "+254700000009")
		require.ErrorIs(t, store.Save(ctx, ghost, 1), sentinel.ErrNotFound)
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		m := newPostgresFixture(t, id.TenantID(uuid.New()), "c@example.org", "+254700000003")
		require.NoError(t, store.Create(ctx, m))
		require.ErrorIs(t, store.Create(ctx, m), sentinel.ErrConflict)
	})

	t.Run("identity lookup matches email and phone within tenant", func(t *testing.T) {
		tenantID := id.TenantID(uuid.New())
		m := newPostgresFixture(t, tenantID, "dup@example.org", "+254700000004")
		require.NoError(t, store.Create(ctx, m))

		inUse, err := store.IdentityInUse(ctx, tenantID,
			models.PersonalInfo{Email: "DUP@example.org", Phone: "+254799999999"}, id.NewMemberID())
		require.NoError(t, err)
		assert.True(t, inUse)

		inUse, err = store.IdentityInUse(ctx, tenantID, m.Person, m.ID)
		require.NoError(t, err)
		assert.False(t, inUse, "a member's own record never collides with itself")

		inUse, err = store.IdentityInUse(ctx, id.TenantID(uuid.New()), m.Person, id.NewMemberID())
		require.NoError(t, err)
		assert.False(t, inUse, "identity uniqueness is scoped per tenant")
	})

	t.Run("save and sequence allocation share one transaction", func(t *testing.T) {
		runner := NewPostgresTx(pg.DB)
		m := newPostgresFixture(t, id.TenantID(uuid.New()), "tx@example.org", "+254700000005")
		require.NoError(t, store.Create(ctx, m))

		boom := assert.AnError
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			m.ApplySubmit(models.GeographyRef{Raw: "text:Ward5"}, time.Now())
			if err := store.Save(ctx, m, 1); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		found, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateDraft, found.State, "rolled back save must not be visible")
		assert.Equal(t, int64(1), found.Version)
	})
}

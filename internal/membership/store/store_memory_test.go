package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"quorum/internal/membership/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newMembership(tenantID id.TenantID, email, phone string) *models.Membership {
	m, err := models.NewMembership(
		id.NewMemberID(),
		tenantID,
		"PDA",
		"FULL",
		models.PersonalInfo{FullName: "Asha Okello", Email: email, Phone: phone},
		nil,
		time.Now(),
	)
	s.Require().NoError(err)
	return m
}

func (s *MemoryStoreSuite) TestCreateAndFind() {
	s.Run("creates at version 1 and finds by id", func() {
		m := s.newMembership(id.TenantID(uuid.New()), "asha@example.org", "+254700000001")
		s.Require().NoError(s.store.Create(s.ctx, m))
		s.Equal(int64(1), m.Version)

		found, err := s.store.FindByID(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal(m.ID, found.ID)
		s.Equal(models.StateDraft, found.State)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewMemberID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate create", func() {
		m := s.newMembership(id.TenantID(uuid.New()), "b@example.org", "+254700000002")
		s.Require().NoError(s.store.Create(s.ctx, m))
		s.Require().ErrorIs(s.store.Create(s.ctx, m), sentinel.ErrConflict)
	})
}

func (s *MemoryStoreSuite) TestSave_OptimisticConcurrency() {
	m := s.newMembership(id.TenantID(uuid.New()), "asha@example.org", "+254700000001")
	s.Require().NoError(s.store.Create(s.ctx, m))

	s.Run("save against current version advances it", func() {
		m.ApplySubmit(models.GeographyRef{Raw: "text:Ward5"}, time.Now())
		s.Require().NoError(s.store.Save(s.ctx, m, 1))
		s.Equal(int64(2), m.Version)
	})

	s.Run("save against stale version conflicts", func() {
		stale := m.Clone()
		stale.Version = 1
		s.Require().ErrorIs(s.store.Save(s.ctx, stale, 1), sentinel.ErrConflict)
	})

	s.Run("save of missing aggregate reports not found", func() {
		ghost := s.newMembership(id.TenantID(uuid.New()), "g@example.org", "+254700000009")
		s.Require().ErrorIs(s.store.Save(s.ctx, ghost, 1), sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestSave_ConcurrentWritersExactlyOneWins() {
	m := s.newMembership(id.TenantID(uuid.New()), "asha@example.org", "+254700000001")
	s.Require().NoError(s.store.Create(s.ctx, m))

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copy, err := s.store.FindByID(s.ctx, m.ID)
			if err != nil {
				results <- err
				return
			}
			copy.ApplySubmit(models.GeographyRef{Raw: "text:Ward5"}, time.Now())
			results <- s.store.Save(s.ctx, copy, 1)
		}()
	}
	wg.Wait()
	close(results)

	winners, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			winners++
		case err == sentinel.ErrConflict:
			conflicts++
		default:
			s.FailNowf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, winners)
	s.Equal(writers-1, conflicts)
}

func (s *MemoryStoreSuite) TestIdentityInUse() {
	tenantID := id.TenantID(uuid.New())
	m := s.newMembership(tenantID, "asha@example.org", "+254700000001")
	s.Require().NoError(s.store.Create(s.ctx, m))

	s.Run("matches email case-insensitively within tenant", func() {
		inUse, err := s.store.IdentityInUse(s.ctx, tenantID,
			models.PersonalInfo{Email: "ASHA@example.org", Phone: "+254799999999"}, id.NewMemberID())
		s.Require().NoError(err)
		s.True(inUse)
	})

	s.Run("matches phone within tenant", func() {
		inUse, err := s.store.IdentityInUse(s.ctx, tenantID,
			models.PersonalInfo{Email: "other@example.org", Phone: "+254700000001"}, id.NewMemberID())
		s.Require().NoError(err)
		s.True(inUse)
	})

	s.Run("excludes the member's own aggregate", func() {
		inUse, err := s.store.IdentityInUse(s.ctx, tenantID, m.Person, m.ID)
		s.Require().NoError(err)
		s.False(inUse)
	})

	s.Run("scoped per tenant", func() {
		inUse, err := s.store.IdentityInUse(s.ctx, id.TenantID(uuid.New()), m.Person, id.NewMemberID())
		s.Require().NoError(err)
		s.False(inUse)
	})
}

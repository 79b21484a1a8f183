// Package store persists membership aggregates. Both implementations
// enforce optimistic concurrency: a save carries the version the caller
// loaded, and loses with sentinel.ErrConflict when the stored version has
// advanced.
package store

import (
	"context"
	"strings"
	"sync"

	"quorum/internal/membership/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemory keeps aggregates in a mutex-guarded map. It favors clarity over
// performance and backs unit tests and single-process runs.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.MemberID]*models.Membership
	numbers map[id.MembershipNumber]id.MemberID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.MemberID]*models.Membership),
		numbers: make(map[id.MembershipNumber]id.MemberID),
	}
}

// Create inserts a fresh aggregate at version 1.
func (s *InMemory) Create(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[m.ID]; exists {
		return sentinel.ErrConflict
	}
	m.Version = 1
	s.byID[m.ID] = m.Clone()
	return nil
}

// FindByID returns a deep copy of the stored aggregate.
func (s *InMemory) FindByID(_ context.Context, memberID id.MemberID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.byID[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return stored.Clone(), nil
}

// Save persists a mutated aggregate. The stored version must still equal
// expectedVersion; on success both the store and the caller's copy advance
// to expectedVersion+1.
func (s *InMemory) Save(_ context.Context, m *models.Membership, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[m.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	m.Version = expectedVersion + 1
	s.byID[m.ID] = m.Clone()
	if !m.Number.IsZero() {
		s.numbers[m.Number] = m.ID
	}
	return nil
}

// IdentityInUse reports whether another aggregate in the tenant already owns
// the email or phone. The check is case-insensitive on email.
func (s *InMemory) IdentityInUse(_ context.Context, tenantID id.TenantID, person models.PersonalInfo, excludeID id.MemberID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, stored := range s.byID {
		if stored.ID == excludeID || stored.TenantID != tenantID {
			continue
		}
		if strings.EqualFold(stored.Person.Email, person.Email) || stored.Person.Phone == person.Phone {
			return true, nil
		}
	}
	return false, nil
}

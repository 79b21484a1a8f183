package eventbus

import (
	"context"
	"sync"
	"time"
)

// DeadLetter is an envelope the relay gave up on, kept operator-visible
// rather than silently dropped.
type DeadLetter struct {
	Envelope  Envelope  `json:"envelope"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	FailedAt  time.Time `json:"failed_at"`
}

// DeadLetterStore records exhausted envelopes for inspection and manual
// replay.
type DeadLetterStore interface {
	Append(ctx context.Context, letter DeadLetter) error
	List(ctx context.Context) ([]DeadLetter, error)
}

// InMemoryDeadLetters is the test and single-process implementation.
type InMemoryDeadLetters struct {
	mu      sync.RWMutex
	letters []DeadLetter
}

func NewInMemoryDeadLetters() *InMemoryDeadLetters {
	return &InMemoryDeadLetters{}
}

func (s *InMemoryDeadLetters) Append(_ context.Context, letter DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, letter)
	return nil
}

func (s *InMemoryDeadLetters) List(_ context.Context) ([]DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeadLetter, len(s.letters))
	copy(out, s.letters)
	return out, nil
}

package payment

import (
	"context"
	"sync"

	"quorum/pkg/platform/sentinel"
)

// Recorder is an in-memory Confirmer for tests and development. Settlements
// are recorded up front and looked up by reference.
type Recorder struct {
	mu       sync.RWMutex
	settled  map[string]int64
	pending  map[string]struct{}
	failNext error
}

func NewRecorder() *Recorder {
	return &Recorder{
		settled: make(map[string]int64),
		pending: make(map[string]struct{}),
	}
}

// Settle records paymentRef as confirmed for amount.
func (r *Recorder) Settle(paymentRef string, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled[paymentRef] = amount
	delete(r.pending, paymentRef)
}

// MarkPending records paymentRef as known but not yet settled.
func (r *Recorder) MarkPending(paymentRef string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[paymentRef] = struct{}{}
}

// FailWith makes the next Check return err, simulating a provider outage.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *Recorder) Check(_ context.Context, paymentRef string) (Confirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return Confirmation{}, err
	}
	if amount, ok := r.settled[paymentRef]; ok {
		return Confirmation{Confirmed: true, Amount: amount}, nil
	}
	if _, ok := r.pending[paymentRef]; ok {
		return Confirmation{Confirmed: false}, nil
	}
	return Confirmation{}, sentinel.ErrNotFound
}

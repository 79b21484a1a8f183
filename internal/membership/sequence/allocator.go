// Package sequence allocates membership-number sequences. Allocation is the
// one deliberately serialized resource in the system: two concurrent
// approvals in the same (tenant, year, type) scope must never receive the
// same number. Each implementation guarantees an atomic increment per key;
// nothing here takes a broader lock.
package sequence

import (
	"context"
	"fmt"
	"sync"
)

// Allocator hands out the next sequence value for a scope. Values start at 1
// and are never reused, even when the command that requested one later fails
// (gaps from aborted commands are acceptable; duplicates are not).
type Allocator interface {
	Next(ctx context.Context, tenantCode string, year int, typeCode string) (int64, error)
}

func key(tenantCode string, year int, typeCode string) string {
	return fmt.Sprintf("%s:%d:%s", tenantCode, year, typeCode)
}

// InMemory keeps one counter per scope behind a mutex.
type InMemory struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewInMemory() *InMemory {
	return &InMemory{counters: make(map[string]int64)}
}

func (a *InMemory) Next(_ context.Context, tenantCode string, year int, typeCode string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key(tenantCode, year, typeCode)
	a.counters[k]++
	return a.counters[k], nil
}

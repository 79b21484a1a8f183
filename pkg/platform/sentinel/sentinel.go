package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, allocators, and lookup
// adapters return these (optionally wrapped) so services can translate them
// into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store or lookup
// - ErrConflict: optimistic-concurrency loss or uniqueness clash
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: dependency temporarily unavailable
//
// For business-rule rejections use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

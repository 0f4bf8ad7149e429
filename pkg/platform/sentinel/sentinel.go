package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about stored entities, not validation
// failures:
// - ErrNotFound: entity does not exist in the store
// - ErrDuplicate: a uniqueness constraint rejected the write
// - ErrNoCopies: reserve attempted with zero available copies
// - ErrActiveLoans: deletion refused because open loans reference the entity
// - ErrAlreadyReturned: close attempted on a loan that is already closed
// - ErrCorrupted: a store invariant no longer holds (caller bug, never clamp)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate")
	ErrNoCopies        = errors.New("no copies available")
	ErrActiveLoans     = errors.New("active loans")
	ErrAlreadyReturned = errors.New("already returned")
	ErrCorrupted       = errors.New("store invariant violated")
)

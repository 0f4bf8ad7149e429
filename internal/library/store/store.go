// Package store persists catalog items, borrowers, and loans.
//
// Stores are interface-driven to keep the domain logic testable and to allow
// swapping the in-memory backend for SQLite or PostgreSQL without rewiring
// business code. Stores are pure I/O plus the atomic primitives the inventory
// ledger needs; business rules live in the service layer.
//
// Stores return pkg/platform/sentinel errors for factual states (not found,
// duplicate, no copies free); services translate them into coded domain
// errors.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"biblio/internal/library/models"
)

// Store is the entity store behind the inventory ledger and loan lifecycle.
//
// ReserveCopy, ReleaseCopy, DeleteItemIfNoOpenLoans, and
// DeleteBorrowerIfNoOpenLoans are atomic with respect to concurrent calls on
// the same entity: each is a single conditional mutation that either fully
// applies or reports why it could not.
type Store interface {
	// CreateItem inserts a new catalog item.
	CreateItem(ctx context.Context, item *models.CatalogItem) error
	// FindItem returns sentinel.ErrNotFound for unknown ids.
	FindItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	ListItems(ctx context.Context) ([]*models.CatalogItem, error)
	// ReserveCopy decrements available copies by one. Returns
	// sentinel.ErrNotFound for unknown ids and sentinel.ErrNoCopies when no
	// copy is free. Never drives the count negative.
	ReserveCopy(ctx context.Context, id uuid.UUID) error
	// ReleaseCopy increments available copies by one. Returns
	// sentinel.ErrNotFound for unknown ids and sentinel.ErrCorrupted when the
	// increment would exceed total copies; the count is never silently
	// clamped past the cap.
	ReleaseCopy(ctx context.Context, id uuid.UUID) error
	// DeleteItemIfNoOpenLoans deletes the item unless an open loan references
	// it, in which case it returns sentinel.ErrActiveLoans and changes
	// nothing. The guard check and the delete are one atomic step.
	DeleteItemIfNoOpenLoans(ctx context.Context, id uuid.UUID) error
	// CountOpenLoansByItem supports the deletion guard and invariant checks.
	CountOpenLoansByItem(ctx context.Context, itemID uuid.UUID) (int, error)

	// CreateBorrower inserts a new borrower; returns sentinel.ErrDuplicate
	// when the national identifier is already registered.
	CreateBorrower(ctx context.Context, borrower *models.Borrower) error
	FindBorrower(ctx context.Context, id uuid.UUID) (*models.Borrower, error)
	ListBorrowers(ctx context.Context) ([]*models.Borrower, error)
	// DeleteBorrowerIfNoOpenLoans mirrors DeleteItemIfNoOpenLoans.
	DeleteBorrowerIfNoOpenLoans(ctx context.Context, id uuid.UUID) error
	CountOpenLoansByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error)

	// CreateLoan inserts an open loan record.
	CreateLoan(ctx context.Context, loan *models.Loan) error
	FindLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	// CloseLoan sets the return timestamp iff the loan is still open.
	// Returns sentinel.ErrNotFound for unknown ids and
	// sentinel.ErrAlreadyReturned when the timestamp is already set, so a
	// double close can never release a copy twice.
	CloseLoan(ctx context.Context, id uuid.UUID, returnedAt time.Time) error
	ListOpenLoans(ctx context.Context) ([]*models.Loan, error)
}

// Tx provides the transactional boundary for compound mutations
// (reserve+create, close+release, guard+delete). Implementations may wrap a
// database transaction or, in memory, per-entity locks.
//
// keys name the entities the operation touches; lock-based implementations
// serialize on them, SQL implementations rely on the transaction and ignore
// them. Partial application of fn's mutations is never observable: on error
// everything rolls back.
type Tx interface {
	RunInTx(ctx context.Context, fn func(s Store) error, keys ...uuid.UUID) error
}

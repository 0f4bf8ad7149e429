package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "biblio/pkg/domain-errors"
)

// DefaultLoanPeriod is the lending period applied when none is configured.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Loan records a single copy lent to a borrower.
//
// Invariants:
//   - LoanedAt is set at creation and immutable
//   - DueAt is always LoanedAt plus the server-side loan period; it is never
//     taken from caller input
//   - ReturnedAt is nil while the loan is open and set exactly once on close
//   - State transitions: Open -> Closed only, never reversible
//   - Loans are historical records and are never deleted
type Loan struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ItemID     uuid.UUID  `json:"item_id" db:"item_id"`
	BorrowerID uuid.UUID  `json:"borrower_id" db:"borrower_id"`
	LoanedAt   time.Time  `json:"loaned_at" db:"loaned_at"`
	DueAt      time.Time  `json:"due_at" db:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty" db:"returned_at"`
}

// NewLoan constructs an open loan. The due timestamp is derived from the
// creation time and the configured period, never from the caller.
func NewLoan(id, itemID, borrowerID uuid.UUID, now time.Time, period time.Duration) *Loan {
	if period <= 0 {
		period = DefaultLoanPeriod
	}
	return &Loan{
		ID:         id,
		ItemID:     itemID,
		BorrowerID: borrowerID,
		LoanedAt:   now,
		DueAt:      now.Add(period),
	}
}

// IsOpen reports whether the copy is still out.
func (l *Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}

// CanClose checks whether the loan can transition to closed.
func (l *Loan) CanClose() error {
	if !l.IsOpen() {
		return dErrors.New(dErrors.CodeAlreadyClosed, "loan is already closed")
	}
	return nil
}

// ApplyClose transitions the loan to closed. Call CanClose first.
func (l *Loan) ApplyClose(now time.Time) {
	t := now
	l.ReturnedAt = &t
}

// Close validates and applies the close transition in one call.
func (l *Loan) Close(now time.Time) error {
	if err := l.CanClose(); err != nil {
		return err
	}
	l.ApplyClose(now)
	return nil
}

// OpenLoanView is an open loan enriched with the referenced item's title and
// borrower's name for listing. Read-only join, recomputed per call.
type OpenLoanView struct {
	Loan
	ItemTitle    string `json:"item_title"`
	BorrowerName string `json:"borrower_name"`
}

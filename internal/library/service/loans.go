package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"biblio/internal/library/models"
	"biblio/internal/library/store"
	dErrors "biblio/pkg/domain-errors"
	"biblio/pkg/platform/sentinel"
	"biblio/pkg/requestcontext"
)

// OpenLoan reserves a copy and creates the loan record as one atomic unit:
// a decremented count with no corresponding loan record is never observable,
// even if the operation fails partway through.
//
// The transactional scope is keyed by both the item and the borrower so a
// concurrent deletion of either cannot interleave with the open.
func (s *Service) OpenLoan(ctx context.Context, itemID, borrowerID uuid.UUID) (*models.Loan, error) {
	start := time.Now()
	loan := models.NewLoan(uuid.New(), itemID, borrowerID, requestcontext.Now(ctx), s.loanPeriod)

	err := s.tx.RunInTx(ctx, func(st store.Store) error {
		if _, err := st.FindBorrower(ctx, borrowerID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return notFound("borrower")
			}
			return wrapInfra(err, "failed to load borrower")
		}
		if err := st.ReserveCopy(ctx, itemID); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return notFound("catalog item")
			case errors.Is(err, sentinel.ErrNoCopies):
				if s.metrics != nil {
					s.metrics.LoansUnavailable.Inc()
				}
				return dErrors.New(dErrors.CodeUnavailable, "no copies available")
			default:
				return wrapInfra(err, "failed to reserve copy")
			}
		}
		return wrapInfra(st.CreateLoan(ctx, loan), "failed to create loan")
	}, itemID, borrowerID)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.LoansOpened.Inc()
		s.metrics.ObserveOpenLoan(start)
	}
	s.logger.InfoContext(ctx, "loan opened",
		"loan_id", loan.ID,
		"item_id", itemID,
		"borrower_id", borrowerID,
		"due_at", loan.DueAt,
	)
	return loan, nil
}

// CloseLoan sets the return timestamp and releases the copy as one atomic
// unit. Closing is monotonic: a second close fails with AlreadyClosed and
// never releases the copy a second time.
func (s *Service) CloseLoan(ctx context.Context, loanID uuid.UUID) error {
	start := time.Now()

	// Resolve the item outside the scope to know which ledger entry the
	// transaction must serialize on; the close itself re-checks loan state
	// atomically inside.
	loan, err := s.store.FindLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return notFound("loan")
		}
		return wrapInfra(err, "failed to load loan")
	}
	if err := loan.CanClose(); err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(st store.Store) error {
		if err := st.CloseLoan(ctx, loanID, requestcontext.Now(ctx)); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return notFound("loan")
			case errors.Is(err, sentinel.ErrAlreadyReturned):
				return dErrors.New(dErrors.CodeAlreadyClosed, "loan is already closed")
			default:
				return wrapInfra(err, "failed to close loan")
			}
		}
		if err := st.ReleaseCopy(ctx, loan.ItemID); err != nil {
			// An open loan's item must exist and sit below its cap; any
			// release failure here means the ledger and the loan records
			// disagree.
			return s.consistencyFault(ctx, "close_loan", err)
		}
		return nil
	}, loan.ItemID, loanID)
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.LoansClosed.Inc()
		s.metrics.ObserveCloseLoan(start)
	}
	s.logger.InfoContext(ctx, "loan closed", "loan_id", loanID, "item_id", loan.ItemID)
	return nil
}

// ListOpenLoans returns every open loan enriched with the referenced item's
// title and borrower's name. The join is an explicit lookup by foreign key,
// recomputed per call.
func (s *Service) ListOpenLoans(ctx context.Context) ([]*models.OpenLoanView, error) {
	loans, err := s.store.ListOpenLoans(ctx)
	if err != nil {
		return nil, wrapInfra(err, "failed to list open loans")
	}

	views := make([]*models.OpenLoanView, 0, len(loans))
	for _, loan := range loans {
		item, err := s.store.FindItem(ctx, loan.ItemID)
		if err != nil {
			// The deletion guard makes an open loan's referents undeletable;
			// a miss here is a broken invariant, not a user error.
			return nil, s.consistencyFault(ctx, "list_open_loans", err)
		}
		borrower, err := s.store.FindBorrower(ctx, loan.BorrowerID)
		if err != nil {
			return nil, s.consistencyFault(ctx, "list_open_loans", err)
		}
		views = append(views, &models.OpenLoanView{
			Loan:         *loan,
			ItemTitle:    item.Title,
			BorrowerName: borrower.Name,
		})
	}
	return views, nil
}

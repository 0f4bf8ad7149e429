package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"biblio/internal/library/models"
	"biblio/internal/library/store"
	dErrors "biblio/pkg/domain-errors"
	"biblio/pkg/platform/sentinel"
	"biblio/pkg/requestcontext"
)

// AddBorrower registers a borrower. The national identifier is globally
// unique; a second registration with the same identifier fails with
// DuplicateIdentifier so the caller can distinguish it from other input
// errors.
func (s *Service) AddBorrower(ctx context.Context, name, nationalID, email string) (*models.Borrower, error) {
	borrower, err := models.NewBorrower(uuid.New(), name, nationalID, email, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(st store.Store) error {
		return st.CreateBorrower(ctx, borrower)
	}, borrower.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeDuplicateIdentifier, "national identifier already registered")
		}
		return nil, wrapInfra(err, "failed to create borrower")
	}

	s.logger.InfoContext(ctx, "borrower added", "borrower_id", borrower.ID)
	return borrower, nil
}

// RemoveBorrower deletes a borrower unless an open loan references them.
// Guard check and delete run in the borrower's transactional scope.
func (s *Service) RemoveBorrower(ctx context.Context, borrowerID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(st store.Store) error {
		return st.DeleteBorrowerIfNoOpenLoans(ctx, borrowerID)
	}, borrowerID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return notFound("borrower")
		case errors.Is(err, sentinel.ErrActiveLoans):
			if s.metrics != nil {
				s.metrics.DeletionConflicts.Inc()
			}
			return dErrors.New(dErrors.CodeConflict, "borrower has open loans")
		default:
			return wrapInfra(err, "failed to delete borrower")
		}
	}

	s.logger.InfoContext(ctx, "borrower removed", "borrower_id", borrowerID)
	return nil
}

// ListBorrowers returns all registered borrowers.
func (s *Service) ListBorrowers(ctx context.Context) ([]*models.Borrower, error) {
	borrowers, err := s.store.ListBorrowers(ctx)
	if err != nil {
		return nil, wrapInfra(err, "failed to list borrowers")
	}
	return borrowers, nil
}

// CanDeleteBorrower reports whether the deletion guard would allow removing
// the borrower right now. Advisory only: RemoveBorrower re-checks atomically.
func (s *Service) CanDeleteBorrower(ctx context.Context, borrowerID uuid.UUID) (bool, error) {
	count, err := s.store.CountOpenLoansByBorrower(ctx, borrowerID)
	if err != nil {
		return false, wrapInfra(err, "failed to count open loans")
	}
	return count == 0, nil
}

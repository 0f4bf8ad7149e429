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

// AddItem creates a catalog item. availableCopies < 0 defaults it to
// totalCopies; totalCopies <= 0 defaults to 1.
func (s *Service) AddItem(ctx context.Context, title, author string, totalCopies, availableCopies int) (*models.CatalogItem, error) {
	if totalCopies == 0 {
		totalCopies = 1
	}
	item, err := models.NewCatalogItem(uuid.New(), title, author, totalCopies, availableCopies, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(st store.Store) error {
		return st.CreateItem(ctx, item)
	}, item.ID)
	if err != nil {
		return nil, wrapInfra(err, "failed to create catalog item")
	}

	s.logger.InfoContext(ctx, "catalog item added",
		"item_id", item.ID,
		"title", item.Title,
		"total_copies", item.TotalCopies,
	)
	return item, nil
}

// RemoveItem deletes a catalog item unless an open loan references it. The
// guard check and the delete are one atomic step inside the item's
// transactional scope, so a loan cannot open against an item mid-deletion.
func (s *Service) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(st store.Store) error {
		return st.DeleteItemIfNoOpenLoans(ctx, itemID)
	}, itemID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return notFound("catalog item")
		case errors.Is(err, sentinel.ErrActiveLoans):
			if s.metrics != nil {
				s.metrics.DeletionConflicts.Inc()
			}
			return dErrors.New(dErrors.CodeConflict, "catalog item has open loans")
		default:
			return wrapInfra(err, "failed to delete catalog item")
		}
	}

	s.logger.InfoContext(ctx, "catalog item removed", "item_id", itemID)
	return nil
}

// ListItems returns the full catalog.
func (s *Service) ListItems(ctx context.Context) ([]*models.CatalogItem, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, wrapInfra(err, "failed to list catalog items")
	}
	return items, nil
}

// CanDeleteItem reports whether the deletion guard would allow removing the
// item right now. Advisory only: RemoveItem re-checks atomically.
func (s *Service) CanDeleteItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	count, err := s.store.CountOpenLoansByItem(ctx, itemID)
	if err != nil {
		return false, wrapInfra(err, "failed to count open loans")
	}
	return count == 0, nil
}

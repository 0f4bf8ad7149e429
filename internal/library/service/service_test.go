package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"biblio/internal/library/models"
	"biblio/internal/library/store"
	dErrors "biblio/pkg/domain-errors"
	"biblio/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store, store.NewMemoryTx(s.store))
	s.ctx = context.Background()
}

func (s *ServiceSuite) TestAddItem() {
	s.Run("defaults copies to one when unset", func() {
		item, err := s.service.AddItem(s.ctx, "Dune", "Herbert", 0, -1)
		s.Require().NoError(err)
		s.Equal(1, item.TotalCopies)
		s.Equal(1, item.AvailableCopies)
	})

	s.Run("rejects blank title", func() {
		_, err := s.service.AddItem(s.ctx, "   ", "", 1, -1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("stamps creation time from the request clock", func() {
		at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, at)

		item, err := s.service.AddItem(ctx, "Clocked", "", 1, -1)
		s.Require().NoError(err)
		s.Equal(at, item.CreatedAt)
	})
}

func (s *ServiceSuite) TestAddBorrower() {
	s.Run("rejects duplicate national identifier", func() {
		_, err := s.service.AddBorrower(s.ctx, "Alice", "9900112233", "")
		s.Require().NoError(err)

		_, err = s.service.AddBorrower(s.ctx, "Bob", "9900112233", "bob@example.com")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateIdentifier))
	})
}

func (s *ServiceSuite) TestLoanLifecycle() {
	s.Run("borrow and return a two copy title", func() {
		item, err := s.service.AddItem(s.ctx, "Moby Dick", "Melville", 2, -1)
		s.Require().NoError(err)
		alice, err := s.service.AddBorrower(s.ctx, "Alice", "md-1", "")
		s.Require().NoError(err)
		bob, err := s.service.AddBorrower(s.ctx, "Bob", "md-2", "")
		s.Require().NoError(err)

		first, err := s.service.OpenLoan(s.ctx, item.ID, alice.ID)
		s.Require().NoError(err)
		_, err = s.service.OpenLoan(s.ctx, item.ID, bob.ID)
		s.Require().NoError(err)

		items, err := s.service.ListItems(s.ctx)
		s.Require().NoError(err)
		s.Equal(0, items[0].AvailableCopies)

		// A third borrow attempt must fail, the shelf is empty.
		_, err = s.service.OpenLoan(s.ctx, item.ID, alice.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

		s.Require().NoError(s.service.CloseLoan(s.ctx, first.ID))

		items, err = s.service.ListItems(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, items[0].AvailableCopies)

		open, err := s.service.ListOpenLoans(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(open, 1)
		s.Equal("Moby Dick", open[0].ItemTitle)
		s.Equal("Bob", open[0].BorrowerName)
	})

	s.Run("due date is derived server-side", func() {
		item, err := s.service.AddItem(s.ctx, "Due", "", 1, -1)
		s.Require().NoError(err)
		reader, err := s.service.AddBorrower(s.ctx, "Reader", "due-1", "")
		s.Require().NoError(err)

		at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
		loan, err := s.service.OpenLoan(requestcontext.WithTime(s.ctx, at), item.ID, reader.ID)
		s.Require().NoError(err)
		s.Equal(at, loan.LoanedAt)
		s.Equal(at.Add(models.DefaultLoanPeriod), loan.DueAt)
	})

	s.Run("unknown references are rejected without reserving", func() {
		item, err := s.service.AddItem(s.ctx, "Orphan", "", 1, -1)
		s.Require().NoError(err)

		_, err = s.service.OpenLoan(s.ctx, item.ID, uuid.New())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		_, err = s.service.OpenLoan(s.ctx, uuid.New(), uuid.New())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		items, err := s.service.ListItems(s.ctx)
		s.Require().NoError(err)
		for _, it := range items {
			if it.ID == item.ID {
				s.Equal(1, it.AvailableCopies, "failed borrow must not consume a copy")
			}
		}
	})

	s.Run("double close reports already closed", func() {
		item, err := s.service.AddItem(s.ctx, "Twice", "", 1, -1)
		s.Require().NoError(err)
		reader, err := s.service.AddBorrower(s.ctx, "Twice Reader", "twice-1", "")
		s.Require().NoError(err)
		loan, err := s.service.OpenLoan(s.ctx, item.ID, reader.ID)
		s.Require().NoError(err)

		s.Require().NoError(s.service.CloseLoan(s.ctx, loan.ID))

		err = s.service.CloseLoan(s.ctx, loan.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyClosed))

		// The second attempt must not release another copy.
		items, err := s.service.ListItems(s.ctx)
		s.Require().NoError(err)
		for _, it := range items {
			if it.ID == item.ID {
				s.Equal(1, it.AvailableCopies)
			}
		}
	})
}

func (s *ServiceSuite) TestDeletionGuards() {
	s.Run("item and borrower with open loan cannot be removed", func() {
		item, err := s.service.AddItem(s.ctx, "Guarded", "", 1, -1)
		s.Require().NoError(err)
		reader, err := s.service.AddBorrower(s.ctx, "Guard Reader", "guard-1", "")
		s.Require().NoError(err)
		loan, err := s.service.OpenLoan(s.ctx, item.ID, reader.ID)
		s.Require().NoError(err)

		err = s.service.RemoveItem(s.ctx, item.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		err = s.service.RemoveBorrower(s.ctx, reader.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		ok, err := s.service.CanDeleteItem(s.ctx, item.ID)
		s.Require().NoError(err)
		s.False(ok)

		// After closing, both removals succeed and the loan survives.
		s.Require().NoError(s.service.CloseLoan(s.ctx, loan.ID))
		s.Require().NoError(s.service.RemoveItem(s.ctx, item.ID))
		s.Require().NoError(s.service.RemoveBorrower(s.ctx, reader.ID))
	})

	s.Run("removing unknown entities reports not found", func() {
		err := s.service.RemoveItem(s.ctx, uuid.New())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		err = s.service.RemoveBorrower(s.ctx, uuid.New())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestConcurrentBorrow() {
	item, err := s.service.AddItem(s.ctx, "Single Copy", "", 1, -1)
	s.Require().NoError(err)
	alice, err := s.service.AddBorrower(s.ctx, "Alice", "cc-1", "")
	s.Require().NoError(err)
	bob, err := s.service.AddBorrower(s.ctx, "Bob", "cc-2", "")
	s.Require().NoError(err)

	const attempts = 16
	borrowers := []uuid.UUID{alice.ID, bob.ID}
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(b uuid.UUID) {
			defer wg.Done()
			_, err := s.service.OpenLoan(s.ctx, item.ID, b)
			results <- err
		}(borrowers[i%len(borrowers)])
	}
	wg.Wait()
	close(results)

	var succeeded, unavailable int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeUnavailable):
			unavailable++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, succeeded, "exactly one borrow may win the last copy")
	s.Equal(attempts-1, unavailable)

	items, err := s.service.ListItems(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, items[0].AvailableCopies)

	open, err := s.service.ListOpenLoans(s.ctx)
	s.Require().NoError(err)
	s.Len(open, 1)
}

func (s *ServiceSuite) TestConcurrentDeleteVersusBorrow() {
	// Race removal of an item against borrows of it. Whatever interleaving
	// wins, availability accounting and the deletion guard must stay sound.
	for round := 0; round < 8; round++ {
		item, err := s.service.AddItem(s.ctx, "Contested", "", 1, -1)
		s.Require().NoError(err)
		reader, err := s.service.AddBorrower(s.ctx, "Racer", uuid.NewString(), "")
		s.Require().NoError(err)

		var wg sync.WaitGroup
		var borrowErr, deleteErr error
		var loan *models.Loan
		wg.Add(2)
		go func() {
			defer wg.Done()
			loan, borrowErr = s.service.OpenLoan(s.ctx, item.ID, reader.ID)
		}()
		go func() {
			defer wg.Done()
			deleteErr = s.service.RemoveItem(s.ctx, item.ID)
		}()
		wg.Wait()

		if deleteErr == nil {
			// Delete won; the borrow must have lost cleanly.
			s.Require().Error(borrowErr)
			s.True(dErrors.HasCode(borrowErr, dErrors.CodeNotFound))
		} else {
			// Borrow won; the delete was refused while the loan is open.
			s.Require().NoError(borrowErr)
			s.True(dErrors.HasCode(deleteErr, dErrors.CodeConflict))
			s.Require().NoError(s.service.CloseLoan(s.ctx, loan.ID))
			s.Require().NoError(s.service.RemoveItem(s.ctx, item.ID))
		}
	}
}

func (s *ServiceSuite) TestClosedLoanSurvivesReferentDeletion() {
	item, err := s.service.AddItem(s.ctx, "Ephemeral", "", 1, -1)
	s.Require().NoError(err)
	reader, err := s.service.AddBorrower(s.ctx, "Departed", "gone-1", "")
	s.Require().NoError(err)
	loan, err := s.service.OpenLoan(s.ctx, item.ID, reader.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.service.CloseLoan(s.ctx, loan.ID))

	s.Require().NoError(s.service.RemoveItem(s.ctx, item.ID))
	s.Require().NoError(s.service.RemoveBorrower(s.ctx, reader.ID))

	found, err := s.store.FindLoan(s.ctx, loan.ID)
	s.Require().NoError(err)
	s.False(found.IsOpen())
}

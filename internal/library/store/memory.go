package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"biblio/internal/library/models"
	"biblio/pkg/platform/sentinel"
)

// InMemory keeps the three relations in maps. The read-write mutex makes
// individual operations safe; compound operations are serialized by MemoryTx
// on top of it.
type InMemory struct {
	mu        sync.RWMutex
	items     map[uuid.UUID]models.CatalogItem
	borrowers map[uuid.UUID]models.Borrower
	loans     map[uuid.UUID]models.Loan
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		items:     make(map[uuid.UUID]models.CatalogItem),
		borrowers: make(map[uuid.UUID]models.Borrower),
		loans:     make(map[uuid.UUID]models.Loan),
	}
}

func (s *InMemory) CreateItem(_ context.Context, item *models.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
	return nil
}

func (s *InMemory) FindItem(_ context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &item, nil
}

func (s *InMemory) ListItems(_ context.Context) ([]*models.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]*models.CatalogItem, 0, len(s.items))
	for _, item := range s.items {
		item := item
		items = append(items, &item)
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
	})
	return items, nil
}

func (s *InMemory) ReserveCopy(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if item.AvailableCopies < 1 {
		return sentinel.ErrNoCopies
	}
	item.AvailableCopies--
	s.items[id] = item
	return nil
}

func (s *InMemory) ReleaseCopy(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if item.AvailableCopies >= item.TotalCopies {
		// Releasing past the cap means a release without a matching reserve.
		return sentinel.ErrCorrupted
	}
	item.AvailableCopies++
	s.items[id] = item
	return nil
}

func (s *InMemory) DeleteItemIfNoOpenLoans(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return sentinel.ErrNotFound
	}
	if s.countOpenLocked(func(l models.Loan) bool { return l.ItemID == id }) > 0 {
		return sentinel.ErrActiveLoans
	}
	delete(s.items, id)
	return nil
}

func (s *InMemory) CountOpenLoansByItem(_ context.Context, itemID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countOpenLocked(func(l models.Loan) bool { return l.ItemID == itemID }), nil
}

func (s *InMemory) CreateBorrower(_ context.Context, borrower *models.Borrower) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.borrowers {
		if existing.NationalID == borrower.NationalID {
			return sentinel.ErrDuplicate
		}
	}
	s.borrowers[borrower.ID] = *borrower
	return nil
}

func (s *InMemory) FindBorrower(_ context.Context, id uuid.UUID) (*models.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	borrower, ok := s.borrowers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &borrower, nil
}

func (s *InMemory) ListBorrowers(_ context.Context) ([]*models.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	borrowers := make([]*models.Borrower, 0, len(s.borrowers))
	for _, borrower := range s.borrowers {
		borrower := borrower
		borrowers = append(borrowers, &borrower)
	}
	sort.Slice(borrowers, func(i, j int) bool {
		return strings.ToLower(borrowers[i].Name) < strings.ToLower(borrowers[j].Name)
	})
	return borrowers, nil
}

func (s *InMemory) DeleteBorrowerIfNoOpenLoans(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.borrowers[id]; !ok {
		return sentinel.ErrNotFound
	}
	if s.countOpenLocked(func(l models.Loan) bool { return l.BorrowerID == id }) > 0 {
		return sentinel.ErrActiveLoans
	}
	delete(s.borrowers, id)
	return nil
}

func (s *InMemory) CountOpenLoansByBorrower(_ context.Context, borrowerID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countOpenLocked(func(l models.Loan) bool { return l.BorrowerID == borrowerID }), nil
}

func (s *InMemory) CreateLoan(_ context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans[loan.ID] = *loan
	return nil
}

func (s *InMemory) FindLoan(_ context.Context, id uuid.UUID) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loan, ok := s.loans[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &loan, nil
}

func (s *InMemory) CloseLoan(_ context.Context, id uuid.UUID, returnedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !loan.IsOpen() {
		return sentinel.ErrAlreadyReturned
	}
	loan.ApplyClose(returnedAt)
	s.loans[id] = loan
	return nil
}

func (s *InMemory) ListOpenLoans(_ context.Context) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loans := make([]*models.Loan, 0)
	for _, loan := range s.loans {
		if loan.IsOpen() {
			loan := loan
			loans = append(loans, &loan)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		return loans[i].LoanedAt.Before(loans[j].LoanedAt)
	})
	return loans, nil
}

func (s *InMemory) countOpenLocked(match func(models.Loan) bool) int {
	count := 0
	for _, loan := range s.loans {
		if loan.IsOpen() && match(loan) {
			count++
		}
	}
	return count
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"biblio/internal/library/models"
	"biblio/pkg/platform/sentinel"
)

// SQLiteStoreSuite runs the SQL store against a file-backed sqlite database,
// the same paths the postgres deployment exercises minus the dialect.
type SQLiteStoreSuite struct {
	suite.Suite
	db    *sqlx.DB
	store *SQL
	tx    *SQLTx
	ctx   context.Context
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()

	db, err := sqlx.Open("sqlite", filepath.Join(s.T().TempDir(), "library.db"))
	s.Require().NoError(err)
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s.Require().NoError(EnsureSchema(s.ctx, db))

	s.db = db
	s.store = NewSQL(db)
	s.tx = NewSQLTxRunner(db)
}

func (s *SQLiteStoreSuite) TearDownTest() {
	if s.db != nil {
		s.Require().NoError(s.db.Close())
	}
}

func (s *SQLiteStoreSuite) seedItem(title string, total int) *models.CatalogItem {
	item, err := models.NewCatalogItem(uuid.New(), title, "", total, -1, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateItem(s.ctx, item))
	return item
}

func (s *SQLiteStoreSuite) seedBorrower(name, nationalID string) *models.Borrower {
	borrower, err := models.NewBorrower(uuid.New(), name, nationalID, "", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateBorrower(s.ctx, borrower))
	return borrower
}

func (s *SQLiteStoreSuite) seedLoan(itemID, borrowerID uuid.UUID) *models.Loan {
	loan := models.NewLoan(uuid.New(), itemID, borrowerID, time.Now().UTC(), 0)
	s.Require().NoError(s.store.CreateLoan(s.ctx, loan))
	return loan
}

func (s *SQLiteStoreSuite) TestItemRoundTrip() {
	item := s.seedItem("Round Trip", 3)

	found, err := s.store.FindItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(item.Title, found.Title)
	s.Equal(3, found.AvailableCopies)

	_, err = s.store.FindItem(s.ctx, uuid.New())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.seedItem("Another", 1)
	items, err := s.store.ListItems(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("Another", items[0].Title)
}

func (s *SQLiteStoreSuite) TestReserveReleaseBounds() {
	item := s.seedItem("Bounded", 1)

	s.Require().NoError(s.store.ReserveCopy(s.ctx, item.ID))
	s.Require().ErrorIs(s.store.ReserveCopy(s.ctx, item.ID), sentinel.ErrNoCopies)

	s.Require().NoError(s.store.ReleaseCopy(s.ctx, item.ID))
	s.Require().ErrorIs(s.store.ReleaseCopy(s.ctx, item.ID), sentinel.ErrCorrupted)

	s.Require().ErrorIs(s.store.ReserveCopy(s.ctx, uuid.New()), sentinel.ErrNotFound)
	s.Require().ErrorIs(s.store.ReleaseCopy(s.ctx, uuid.New()), sentinel.ErrNotFound)
}

func (s *SQLiteStoreSuite) TestBorrowerDuplicate() {
	s.seedBorrower("Alice", "dup-1")

	borrower, err := models.NewBorrower(uuid.New(), "Bob", "dup-1", "", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().ErrorIs(s.store.CreateBorrower(s.ctx, borrower), sentinel.ErrDuplicate)
}

func (s *SQLiteStoreSuite) TestDeletionGuards() {
	item := s.seedItem("Guarded", 1)
	borrower := s.seedBorrower("Reader", "guard-1")
	loan := s.seedLoan(item.ID, borrower.ID)

	s.Require().ErrorIs(s.store.DeleteItemIfNoOpenLoans(s.ctx, item.ID), sentinel.ErrActiveLoans)
	s.Require().ErrorIs(s.store.DeleteBorrowerIfNoOpenLoans(s.ctx, borrower.ID), sentinel.ErrActiveLoans)

	count, err := s.store.CountOpenLoansByItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(1, count)

	s.Require().NoError(s.store.CloseLoan(s.ctx, loan.ID, time.Now().UTC()))

	s.Require().NoError(s.store.DeleteItemIfNoOpenLoans(s.ctx, item.ID))
	s.Require().NoError(s.store.DeleteBorrowerIfNoOpenLoans(s.ctx, borrower.ID))

	// The closed loan record outlives both referents.
	found, err := s.store.FindLoan(s.ctx, loan.ID)
	s.Require().NoError(err)
	s.NotNil(found.ReturnedAt)
}

func (s *SQLiteStoreSuite) TestCloseLoanMonotonic() {
	item := s.seedItem("Once", 1)
	borrower := s.seedBorrower("Closer", "close-1")
	loan := s.seedLoan(item.ID, borrower.ID)

	s.Require().NoError(s.store.CloseLoan(s.ctx, loan.ID, time.Now().UTC()))
	s.Require().ErrorIs(s.store.CloseLoan(s.ctx, loan.ID, time.Now().UTC()), sentinel.ErrAlreadyReturned)
	s.Require().ErrorIs(s.store.CloseLoan(s.ctx, uuid.New(), time.Now().UTC()), sentinel.ErrNotFound)

	open, err := s.store.ListOpenLoans(s.ctx)
	s.Require().NoError(err)
	s.Empty(open)
}

func (s *SQLiteStoreSuite) TestRunInTxAtomicity() {
	item := s.seedItem("Atomic", 1)
	borrower := s.seedBorrower("Txer", "tx-1")

	// A failing step rolls back the whole transaction.
	err := s.tx.RunInTx(s.ctx, func(st Store) error {
		if err := st.ReserveCopy(s.ctx, item.ID); err != nil {
			return err
		}
		return st.ReserveCopy(s.ctx, item.ID)
	}, item.ID)
	s.Require().ErrorIs(err, sentinel.ErrNoCopies)

	found, err := s.store.FindItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(1, found.AvailableCopies, "rolled back reserve must not stick")

	// A successful reserve plus loan creation commits together.
	loan := models.NewLoan(uuid.New(), item.ID, borrower.ID, time.Now().UTC(), 0)
	err = s.tx.RunInTx(s.ctx, func(st Store) error {
		if err := st.ReserveCopy(s.ctx, item.ID); err != nil {
			return err
		}
		return st.CreateLoan(s.ctx, loan)
	}, item.ID, borrower.ID)
	s.Require().NoError(err)

	found, err = s.store.FindItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(0, found.AvailableCopies)

	open, err := s.store.ListOpenLoans(s.ctx)
	s.Require().NoError(err)
	s.Len(open, 1)
}

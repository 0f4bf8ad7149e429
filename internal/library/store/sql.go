package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"biblio/internal/library/models"
	"biblio/pkg/platform/sentinel"
)

// SQL persists the three relations in PostgreSQL (pgx) or SQLite
// (modernc.org/sqlite). Queries are written with `?` bindvars and rebound per
// driver.
//
// The ledger primitives are single conditional statements, so a decrement can
// never race another past zero and a release can never overshoot the cap.
// This store is pure I/O; business rules live in the service layer.
type SQL struct {
	ext sqlx.ExtContext
}

// NewSQL constructs a SQL-backed store over a live connection pool.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{ext: db}
}

// NewSQLTx constructs a store scoped to an open transaction. All mutations
// issued through it commit or roll back together.
func NewSQLTx(tx *sqlx.Tx) *SQL {
	return &SQL{ext: tx}
}

func (s *SQL) CreateItem(ctx context.Context, item *models.CatalogItem) error {
	query := s.ext.Rebind(`
		INSERT INTO catalog_items (id, title, author, total_copies, available_copies, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := s.ext.ExecContext(ctx, query,
		item.ID, item.Title, item.Author, item.TotalCopies, item.AvailableCopies, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("create catalog item: %w", err)
	}
	return nil
}

func (s *SQL) FindItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	query := s.ext.Rebind(`
		SELECT id, title, author, total_copies, available_copies, created_at
		FROM catalog_items
		WHERE id = ?
	`)
	if err := sqlx.GetContext(ctx, s.ext, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find catalog item: %w", err)
	}
	return &item, nil
}

func (s *SQL) ListItems(ctx context.Context) ([]*models.CatalogItem, error) {
	items := make([]*models.CatalogItem, 0)
	query := `
		SELECT id, title, author, total_copies, available_copies, created_at
		FROM catalog_items
		ORDER BY LOWER(title), id
	`
	if err := sqlx.SelectContext(ctx, s.ext, &items, query); err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	return items, nil
}

func (s *SQL) ReserveCopy(ctx context.Context, id uuid.UUID) error {
	query := s.ext.Rebind(`
		UPDATE catalog_items
		SET available_copies = available_copies - 1
		WHERE id = ? AND available_copies > 0
	`)
	res, err := s.ext.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("reserve copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve copy: %w", err)
	}
	if affected == 0 {
		return s.itemMiss(ctx, id, sentinel.ErrNoCopies)
	}
	return nil
}

func (s *SQL) ReleaseCopy(ctx context.Context, id uuid.UUID) error {
	query := s.ext.Rebind(`
		UPDATE catalog_items
		SET available_copies = available_copies + 1
		WHERE id = ? AND available_copies < total_copies
	`)
	res, err := s.ext.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("release copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release copy: %w", err)
	}
	if affected == 0 {
		// The item exists but is already at its cap: a release without a
		// matching reserve. Refuse rather than clamp.
		return s.itemMiss(ctx, id, sentinel.ErrCorrupted)
	}
	return nil
}

func (s *SQL) DeleteItemIfNoOpenLoans(ctx context.Context, id uuid.UUID) error {
	query := s.ext.Rebind(`
		DELETE FROM catalog_items
		WHERE id = ? AND NOT EXISTS (
			SELECT 1 FROM loans
			WHERE loans.item_id = catalog_items.id AND loans.returned_at IS NULL
		)
	`)
	res, err := s.ext.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete catalog item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete catalog item: %w", err)
	}
	if affected == 0 {
		return s.itemMiss(ctx, id, sentinel.ErrActiveLoans)
	}
	return nil
}

func (s *SQL) CountOpenLoansByItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	return s.countOpen(ctx, "item_id", itemID)
}

func (s *SQL) CreateBorrower(ctx context.Context, borrower *models.Borrower) error {
	query := s.ext.Rebind(`
		INSERT INTO borrowers (id, name, national_id, email, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err := s.ext.ExecContext(ctx, query,
		borrower.ID, borrower.Name, borrower.NationalID, borrower.Email, borrower.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create borrower: %w", err)
	}
	return nil
}

func (s *SQL) FindBorrower(ctx context.Context, id uuid.UUID) (*models.Borrower, error) {
	var borrower models.Borrower
	query := s.ext.Rebind(`
		SELECT id, name, national_id, email, created_at
		FROM borrowers
		WHERE id = ?
	`)
	if err := sqlx.GetContext(ctx, s.ext, &borrower, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find borrower: %w", err)
	}
	return &borrower, nil
}

func (s *SQL) ListBorrowers(ctx context.Context) ([]*models.Borrower, error) {
	borrowers := make([]*models.Borrower, 0)
	query := `
		SELECT id, name, national_id, email, created_at
		FROM borrowers
		ORDER BY LOWER(name), id
	`
	if err := sqlx.SelectContext(ctx, s.ext, &borrowers, query); err != nil {
		return nil, fmt.Errorf("list borrowers: %w", err)
	}
	return borrowers, nil
}

func (s *SQL) DeleteBorrowerIfNoOpenLoans(ctx context.Context, id uuid.UUID) error {
	query := s.ext.Rebind(`
		DELETE FROM borrowers
		WHERE id = ? AND NOT EXISTS (
			SELECT 1 FROM loans
			WHERE loans.borrower_id = borrowers.id AND loans.returned_at IS NULL
		)
	`)
	res, err := s.ext.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete borrower: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete borrower: %w", err)
	}
	if affected == 0 {
		exists, err := s.exists(ctx, "borrowers", id)
		if err != nil {
			return err
		}
		if exists {
			return sentinel.ErrActiveLoans
		}
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQL) CountOpenLoansByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error) {
	return s.countOpen(ctx, "borrower_id", borrowerID)
}

func (s *SQL) CreateLoan(ctx context.Context, loan *models.Loan) error {
	query := s.ext.Rebind(`
		INSERT INTO loans (id, item_id, borrower_id, loaned_at, due_at, returned_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`)
	_, err := s.ext.ExecContext(ctx, query,
		loan.ID, loan.ItemID, loan.BorrowerID, loan.LoanedAt, loan.DueAt)
	if err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

func (s *SQL) FindLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	query := s.ext.Rebind(`
		SELECT id, item_id, borrower_id, loaned_at, due_at, returned_at
		FROM loans
		WHERE id = ?
	`)
	if err := sqlx.GetContext(ctx, s.ext, &loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find loan: %w", err)
	}
	return &loan, nil
}

func (s *SQL) CloseLoan(ctx context.Context, id uuid.UUID, returnedAt time.Time) error {
	// Conditional update so a concurrent double close matches zero rows
	// instead of overwriting the return timestamp.
	query := s.ext.Rebind(`
		UPDATE loans
		SET returned_at = ?
		WHERE id = ? AND returned_at IS NULL
	`)
	res, err := s.ext.ExecContext(ctx, query, returnedAt, id)
	if err != nil {
		return fmt.Errorf("close loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close loan: %w", err)
	}
	if affected == 0 {
		exists, err := s.exists(ctx, "loans", id)
		if err != nil {
			return err
		}
		if exists {
			return sentinel.ErrAlreadyReturned
		}
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQL) ListOpenLoans(ctx context.Context) ([]*models.Loan, error) {
	loans := make([]*models.Loan, 0)
	query := `
		SELECT id, item_id, borrower_id, loaned_at, due_at, returned_at
		FROM loans
		WHERE returned_at IS NULL
		ORDER BY loaned_at, id
	`
	if err := sqlx.SelectContext(ctx, s.ext, &loans, query); err != nil {
		return nil, fmt.Errorf("list open loans: %w", err)
	}
	return loans, nil
}

func (s *SQL) countOpen(ctx context.Context, column string, id uuid.UUID) (int, error) {
	var count int
	query := s.ext.Rebind(`
		SELECT COUNT(*) FROM loans WHERE ` + column + ` = ? AND returned_at IS NULL
	`)
	if err := sqlx.GetContext(ctx, s.ext, &count, query, id); err != nil {
		return 0, fmt.Errorf("count open loans: %w", err)
	}
	return count, nil
}

// itemMiss distinguishes "item missing" from the conditional-update failure
// the caller hit on an existing row.
func (s *SQL) itemMiss(ctx context.Context, id uuid.UUID, existsErr error) error {
	exists, err := s.exists(ctx, "catalog_items", id)
	if err != nil {
		return err
	}
	if exists {
		return existsErr
	}
	return sentinel.ErrNotFound
}

func (s *SQL) exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	var count int
	query := s.ext.Rebind(`SELECT COUNT(*) FROM ` + table + ` WHERE id = ?`)
	if err := sqlx.GetContext(ctx, s.ext, &count, query, id); err != nil {
		return false, fmt.Errorf("existence check on %s: %w", table, err)
	}
	return count > 0, nil
}

// isUniqueViolation recognizes unique-constraint errors from both drivers:
// pgx surfaces SQLSTATE 23505, modernc sqlite a constraint message.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

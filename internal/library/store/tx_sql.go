package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	dErrors "biblio/pkg/domain-errors"
)

// SQLTx runs compound mutations inside a database transaction with
// rollback-on-error, so a reserved copy with no loan record (or the reverse)
// is never observable.
//
// On PostgreSQL it additionally takes transaction-scoped advisory locks on
// the entity keys, the SQL analogue of the in-memory shard locks: two loan
// opens against the same item serialize, and a delete cannot interleave with
// a loan open referencing the entity being deleted. SQLite serializes writers
// globally, so the keys are not needed there.
type SQLTx struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSQLTxRunner wraps a connection pool with the transactional boundary.
func NewSQLTxRunner(db *sqlx.DB) *SQLTx {
	return &SQLTx{db: db}
}

func (t *SQLTx) RunInTx(ctx context.Context, fn func(s Store) error, keys ...uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if t.db.DriverName() == "pgx" {
		if err := lockAdvisory(ctx, tx, keys); err != nil {
			return err
		}
	}

	if err := fn(NewSQLTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}

// lockAdvisory acquires pg_advisory_xact_lock per key in ascending hash
// order. Sorted acquisition keeps multi-key transactions deadlock-free; the
// locks release automatically at commit or rollback.
func lockAdvisory(ctx context.Context, tx *sqlx.Tx, keys []uuid.UUID) error {
	if len(keys) == 0 {
		return nil
	}
	hashes := make([]int64, 0, len(keys))
	seen := make(map[int64]struct{}, len(keys))
	for _, key := range keys {
		h := int64(hashKey(key.String()))
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	for _, h := range hashes {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "acquire advisory lock")
		}
	}
	return nil
}

// Package service implements the inventory-consistency and loan-lifecycle
// engine: the rules governing how copy counts, loan records, and deletion
// guards interact.
//
// Every mutation runs inside a store.Tx scope keyed by the entities it
// touches, so the derived invariant
//
//	available_copies = total_copies - count(open loans on the item)
//
// holds at every quiescent point, even under concurrent requests. Reads go
// straight to the store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"biblio/internal/library/metrics"
	"biblio/internal/library/models"
	"biblio/internal/library/store"
	dErrors "biblio/pkg/domain-errors"
)

// Service orchestrates catalog, borrower, and loan operations.
type Service struct {
	store      store.Store
	tx         store.Tx
	logger     *slog.Logger
	metrics    *metrics.Metrics
	loanPeriod time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLoanPeriod overrides the default 14-day lending period.
func WithLoanPeriod(period time.Duration) Option {
	return func(s *Service) {
		if period > 0 {
			s.loanPeriod = period
		}
	}
}

// New constructs a Service. The store serves reads; every mutation goes
// through the transactional boundary.
func New(st store.Store, tx store.Tx, opts ...Option) *Service {
	s := &Service{
		store:      st,
		tx:         tx,
		loanPeriod: models.DefaultLoanPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// consistencyFault logs and classifies a broken store invariant. These are
// bugs, not user errors; the boundary turns them into a generic server error.
func (s *Service) consistencyFault(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "inventory invariant violated",
		"op", op,
		"error", err.Error(),
	)
	if s.metrics != nil {
		s.metrics.ConsistencyFaults.Inc()
	}
	return dErrors.Wrap(err, dErrors.CodeInternalConsistency, "inventory ledger out of range")
}

// wrapInfra classifies store errors that carry no domain code yet.
func wrapInfra(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func notFound(entity string) error {
	return dErrors.New(dErrors.CodeNotFound, entity+" not found")
}

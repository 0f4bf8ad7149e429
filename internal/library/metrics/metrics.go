package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lending module. Tracks loan volume,
// guard rejections, and critical path durations.
type Metrics struct {
	LoansOpened       prometheus.Counter
	LoansClosed       prometheus.Counter
	LoansUnavailable  prometheus.Counter
	DeletionConflicts prometheus.Counter
	ConsistencyFaults prometheus.Counter
	OpenLoanDuration  prometheus.Histogram
	CloseLoanDuration prometheus.Histogram
}

// New creates a Metrics instance with all lending module metrics registered.
func New() *Metrics {
	return &Metrics{
		LoansOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "biblio_loans_opened_total",
			Help: "Total number of loans opened",
		}),
		LoansClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "biblio_loans_closed_total",
			Help: "Total number of loans closed",
		}),
		LoansUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "biblio_loans_unavailable_total",
			Help: "Loan attempts rejected because no copy was available",
		}),
		DeletionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "biblio_deletion_conflicts_total",
			Help: "Deletions blocked by the open-loan guard",
		}),
		ConsistencyFaults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "biblio_consistency_faults_total",
			Help: "Detected inventory invariant violations (indicates a bug)",
		}),
		OpenLoanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "biblio_open_loan_duration_seconds",
			Help:    "Duration of open-loan transactions",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CloseLoanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "biblio_close_loan_duration_seconds",
			Help:    "Duration of close-loan transactions",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveOpenLoan records the duration of an open-loan operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveOpenLoan(start time.Time) {
	m.OpenLoanDuration.Observe(time.Since(start).Seconds())
}

// ObserveCloseLoan records the duration of a close-loan operation.
func (m *Metrics) ObserveCloseLoan(start time.Time) {
	m.CloseLoanDuration.Observe(time.Since(start).Seconds())
}

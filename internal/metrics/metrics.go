package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "booking_created_total",
			Help:      "Count of bookings created through the wizard.",
		},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	ledgerEntry = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "ledger_entry_total",
			Help:      "Count of charge/payment rows recorded by type.",
		},
		[]string{"type"},
	)

	ledgerVoid = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "ledger_void_total",
			Help:      "Count of voided ledger rows by kind.",
		},
		[]string{"kind"},
	)

	wizardFlow = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "wizard_flow_total",
			Help:      "Count of wizard flow outcomes.",
		},
		[]string{"outcome"}, // started, completed, cancelled, expired
	)

	confirmTokenMismatch = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "confirm_token_mismatch_total",
			Help:      "Count of stale confirm taps rejected by token check.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, ledgerEntry,
			ledgerVoid, wizardFlow, confirmTokenMismatch)
	})
}

func IncBookingCreated()           { bookingCreated.Inc() }
func IncBookingCancelled()         { bookingCancelled.Inc() }
func IncLedgerEntry(typ string)    { ledgerEntry.WithLabelValues(typ).Inc() }
func IncLedgerVoid(kind string)    { ledgerVoid.WithLabelValues(kind).Inc() }
func IncWizardFlow(outcome string) { wizardFlow.WithLabelValues(outcome).Inc() }
func IncConfirmTokenMismatch()     { confirmTokenMismatch.Inc() }

// IncWizardFlowN adds n to a wizard flow outcome, used by the expiry sweep.
func IncWizardFlowN(outcome string, n int64) {
	wizardFlow.WithLabelValues(outcome).Add(float64(n))
}

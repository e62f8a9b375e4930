// Package observability holds the Prometheus collectors of the points ledger.
//
// Collectors are registered on the default registry through promauto and are
// served by the HTTP adapter at /metrics when metrics are enabled.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
)

// Operation names used as the "operation" label.
const (
	OpAddTransaction   = "add_transaction"
	OpSpend            = "spend"
	OpGetBalances      = "get_balances"
	OpListTransactions = "list_transactions"
)

// ─── Ledger ─────────────────────────────────────────────────────────────────

var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points_ledger",
	Name:      "operations_total",
	Help:      "Ledger operations by operation and result code (empty code = success).",
}, []string{"operation", "code"})

var LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "points_ledger",
	Name:      "operation_duration_seconds",
	Help:      "Latency of ledger operations including the critical section.",
	Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
}, []string{"operation"})

var LedgerTotalPoints = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "points_ledger",
	Name:      "total_points",
	Help:      "Current total point balance of the user.",
})

var LedgerPayerPoints = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "points_ledger",
	Name:      "payer_points",
	Help:      "Current points contributed by each payer.",
}, []string{"payer"})

var LedgerPointsSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "points_ledger",
	Name:      "points_spent_total",
	Help:      "Points consumed by successful spends.",
})

var LedgerIdempotentReplays = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points_ledger",
	Name:      "idempotent_replays_total",
	Help:      "Requests answered from the idempotency cache.",
}, []string{"operation"})

// ─── Journal / Feed ─────────────────────────────────────────────────────────

var JournalWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points_ledger",
	Name:      "journal_writes_total",
	Help:      "Audit journal writes by driver and result.",
}, []string{"driver", "result"})

var EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "points_ledger",
	Name:      "event_subscribers",
	Help:      "Connected websocket event subscribers.",
})

// ObserveOperation records the count and latency of one ledger operation.
func ObserveOperation(operation string, start time.Time, err error) {
	LedgerOperations.WithLabelValues(operation, domain.ErrorCode(err)).Inc()
	LedgerOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveBalances sets the balance gauges from a snapshot.
func ObserveBalances(balances domain.Balances) {
	LedgerTotalPoints.Set(float64(balances.Total()))
	for payer, points := range balances {
		LedgerPayerPoints.WithLabelValues(payer).Set(float64(points))
	}
}

// ObserveJournalWrite records one journal write.
func ObserveJournalWrite(driver string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JournalWrites.WithLabelValues(driver, result).Inc()
}

package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementsTotal counts settlement commit outcomes.
	SettlementsTotal *prometheus.CounterVec
	// SettlementCommissionValue observes computed commission amounts.
	SettlementCommissionValue prometheus.Histogram
	// ReconcileSessionsTotal counts reconciliation session transitions.
	ReconcileSessionsTotal *prometheus.CounterVec
	// DivergenceItemsTotal counts divergent line items at confirmation, by direction.
	DivergenceItemsTotal *prometheus.CounterVec
	// LedgerRPCTotal counts stock ledger remote procedure outcomes.
	LedgerRPCTotal *prometheus.CounterVec
	// ReservationsExpiredTotal counts reservations released by the sweep.
	ReservationsExpiredTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Count of settlement commit outcomes.",
		}, []string{"status", "result"})
		SettlementCommissionValue = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_commission_value",
			Help:      "Commission amounts produced by settlements.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		})
		ReconcileSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_sessions_total",
			Help:      "Count of reconciliation session transitions.",
		}, []string{"transition", "result"})
		DivergenceItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "divergence_items_total",
			Help:      "Divergent line items recorded at confirmation.",
		}, []string{"direction"})
		LedgerRPCTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_rpc_total",
			Help:      "Stock ledger remote procedure outcomes.",
		}, []string{"procedure", "result"})
		ReservationsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_expired_total",
			Help:      "Stock reservations released by the expiry sweep.",
		})
		mustRegister(reg,
			SettlementsTotal,
			SettlementCommissionValue,
			ReconcileSessionsTotal,
			DivergenceItemsTotal,
			LedgerRPCTotal,
			ReservationsExpiredTotal,
		)
	})
}

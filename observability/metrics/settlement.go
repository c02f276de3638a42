package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type SettlementMetrics struct {
	distributorRuns    *prometheus.CounterVec
	invariantAborts    prometheus.Counter
	oracleFailures     prometheus.Counter
	snapshotSkips      prometheus.Counter
	rewardRowsWritten  prometheus.Counter
	referralRows       prometheus.Counter
	referralDegraded   prometheus.Counter
	activationsGranted prometheus.Counter
	weeklyRemainder    *prometheus.GaugeVec
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			distributorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "settlement_distributor_runs_total",
				Help: "Count of weekly distributor runs by result.",
			}, []string{"result"}),
			invariantAborts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_invariant_aborts_total",
				Help: "Count of distribution batches aborted by the pool invariant.",
			}),
			oracleFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_oracle_failures_total",
				Help: "Count of pool B oracle calls absorbed as zero.",
			}),
			snapshotSkips: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_snapshot_skips_total",
				Help: "Count of runs skipped because the snapshot was not ready.",
			}),
			rewardRowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_reward_rows_written_total",
				Help: "Count of weekly reward records persisted.",
			}),
			referralRows: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_referral_rows_written_total",
				Help: "Count of referral weekly point rows persisted.",
			}),
			referralDegraded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_referral_degraded_total",
				Help: "Count of referees degraded to zero for a week after a projection failure.",
			}),
			activationsGranted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_activations_granted_total",
				Help: "Count of one-time activation bonuses granted.",
			}),
			weeklyRemainder: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "settlement_weekly_remainder",
				Help: "Truncation remainder left in each pool by the latest settled week.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			settlementRegistry.distributorRuns,
			settlementRegistry.invariantAborts,
			settlementRegistry.oracleFailures,
			settlementRegistry.snapshotSkips,
			settlementRegistry.rewardRowsWritten,
			settlementRegistry.referralRows,
			settlementRegistry.referralDegraded,
			settlementRegistry.activationsGranted,
			settlementRegistry.weeklyRemainder,
		)
	})
	return settlementRegistry
}

func (m *SettlementMetrics) ObserveDistributorRun(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.distributorRuns.WithLabelValues(result).Inc()
}

func (m *SettlementMetrics) ObserveInvariantAbort() {
	if m == nil {
		return
	}
	m.invariantAborts.Inc()
}

func (m *SettlementMetrics) ObserveOracleFailure() {
	if m == nil {
		return
	}
	m.oracleFailures.Inc()
}

func (m *SettlementMetrics) ObserveSnapshotSkip() {
	if m == nil {
		return
	}
	m.snapshotSkips.Inc()
}

func (m *SettlementMetrics) AddRewardRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rewardRowsWritten.Add(float64(n))
}

func (m *SettlementMetrics) AddReferralRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.referralRows.Add(float64(n))
}

func (m *SettlementMetrics) ObserveReferralDegraded() {
	if m == nil {
		return
	}
	m.referralDegraded.Inc()
}

func (m *SettlementMetrics) AddActivations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.activationsGranted.Add(float64(n))
}

// SetWeeklyRemainder records the truncation remainder for one pool. The
// gauge tracks the latest settled week only; the label set stays fixed at
// the two pools so cardinality never grows with uptime.
func (m *SettlementMetrics) SetWeeklyRemainder(pool string, remainder float64) {
	if m == nil {
		return
	}
	m.weeklyRemainder.WithLabelValues(pool).Set(remainder)
}

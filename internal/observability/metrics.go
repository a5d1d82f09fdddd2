package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for RiskPool.
type Metrics struct {
	// --- Engine operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	Sequence    prometheus.Gauge

	// --- Pool state ---
	PoolBalance  prometheus.Gauge
	TotalShares  prometheus.Gauge
	ReserveRatio prometheus.Gauge
	Paused       prometheus.Gauge

	// --- Deposits / withdrawals ---
	DepositsTotal    prometheus.Counter
	DepositValue     prometheus.Counter
	ZeroShareMints   prometheus.Counter
	WithdrawalsTotal prometheus.Counter
	WithdrawalValue  prometheus.Counter

	// --- Policies & settlement ---
	PoliciesCreated    prometheus.Counter
	PremiumValue       prometheus.Counter
	BatchesSettled     prometheus.Counter
	PoliciesSettled    prometheus.Counter
	SettlementSkipped  *prometheus.CounterVec
	SettlementCapped   prometheus.Counter
	SettlementRolledBack prometheus.Counter
	PayoutValue        prometheus.Counter

	// --- Transfer port ---
	TransferFailures *prometheus.CounterVec

	// --- Channels & backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	PublishDrops       prometheus.Counter
	ProjectionDrops    prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken    prometheus.Counter
	SnapshotDuration prometheus.Histogram
	SnapshotLastSeq  prometheus.Gauge

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskpool_ops_applied_total",
			Help: "Engine operations successfully applied",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskpool_ops_rejected_total",
			Help: "Engine operations rejected (validation, auth, pause, transfer)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskpool_op_duration_seconds",
			Help:    "Time to apply a single engine operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		Sequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskpool_sequence",
			Help: "Current global event sequence number",
		}),

		PoolBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskpool_pool_balance",
			Help: "Current capital pool balance",
		}),

		TotalShares: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskpool_total_shares",
			Help: "Total outstanding LP shares",
		}),

		ReserveRatio: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskpool_reserve_ratio_bps",
			Help: "Configured reserve ratio in basis points",
		}),

		Paused: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskpool_paused",
			Help: "1 when the engine is paused, else 0",
		}),

		DepositsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_deposits_total",
			Help: "Completed LP deposits",
		}),

		DepositValue: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_deposit_value_total",
			Help: "Total value deposited",
		}),

		ZeroShareMints: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_zero_share_mints_total",
			Help: "Deposits whose proportional mint floored to zero",
		}),

		WithdrawalsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_withdrawals_total",
			Help: "Completed LP withdrawals",
		}),

		WithdrawalValue: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_withdrawal_value_total",
			Help: "Total value withdrawn",
		}),

		PoliciesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_policies_created_total",
			Help: "Policies purchased",
		}),

		PremiumValue: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_premium_value_total",
			Help: "Total premium collected",
		}),

		BatchesSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_settlement_batches_total",
			Help: "Settlement batches executed",
		}),

		PoliciesSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_policies_settled_total",
			Help: "Policies settled",
		}),

		SettlementSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskpool_settlement_skipped_total",
			Help: "Batch items skipped (missing, settled, immature)",
		}, []string{"reason"}),

		SettlementCapped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_settlement_capped_total",
			Help: "Payouts capped by remaining pool capital",
		}),

		SettlementRolledBack: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_settlement_rolled_back_total",
			Help: "Settlement items rolled back on failed payout push",
		}),

		PayoutValue: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_payout_value_total",
			Help: "Total value paid out to policyholders",
		}),

		TransferFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskpool_transfer_failures_total",
			Help: "Value-transfer port failures",
		}, []string{"direction"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskpool_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskpool_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_projection_drops_total",
			Help: "Events dropped due to full projection channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskpool_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskpool_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskpool_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskpool_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskpool_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskpool_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskpool_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"endpoint", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskpool_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
}

package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// VestingMetrics 归属账本的业务指标。方法在 nil 接收者上是空操作,
// 测试与命令行工具不初始化指标也能直接调用。
type VestingMetrics struct {
	PoolsOpenedTotal    *prometheus.CounterVec
	ClaimsTotal         *prometheus.CounterVec
	ClaimedAmountTotal  *prometheus.CounterVec
	MigrationsTotal     prometheus.Counter
	SweptAmountTotal    *prometheus.CounterVec
	EventsRelayedTotal  *prometheus.CounterVec
	EventsConsumedTotal *prometheus.CounterVec
	Unallocated         *prometheus.GaugeVec
	Allocated           *prometheus.GaugeVec
	ReportDuration      prometheus.Histogram
}

// Vesting 全局实例, monitor.Init 之后可用
var Vesting *VestingMetrics

func NewVestingMetrics(reg prometheus.Registerer) *VestingMetrics {
	f := promauto.With(reg)
	return &VestingMetrics{
		PoolsOpenedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesting_pools_opened_total",
			Help: "The total number of vesting pools opened",
		}, []string{"kind"}),
		ClaimsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesting_claims_total",
			Help: "Claims by schedule and result",
		}, []string{"schedule", "result"}),
		ClaimedAmountTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesting_claimed_amount_total",
			Help: "The total amount paid out to beneficiaries (smallest unit)",
		}, []string{"asset"}),
		MigrationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vesting_migrations_total",
			Help: "Beneficiary migrations performed",
		}),
		SweptAmountTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesting_swept_amount_total",
			Help: "Unallocated amount swept out of escrow",
		}, []string{"asset"}),
		EventsRelayedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesting_events_relayed_total",
			Help: "Outbox messages relayed to the broker",
		}, []string{"result"}),
		EventsConsumedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesting_events_consumed_total",
			Help: "Ledger events seen by the audit consumer",
		}, []string{"type"}),
		Unallocated: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vesting_escrow_unallocated",
			Help: "Escrow balance not backing any allocation",
		}, []string{"asset"}),
		Allocated: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vesting_escrow_allocated",
			Help: "Outstanding allocated amount per asset",
		}, []string{"asset"}),
		ReportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vesting_escrow_report_duration_seconds",
			Help:    "Duration of the escrow report job",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *VestingMetrics) PoolOpened(kind string) {
	if m == nil {
		return
	}
	m.PoolsOpenedTotal.WithLabelValues(kind).Inc()
}

func (m *VestingMetrics) Claim(schedule, asset string, amount float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ClaimsTotal.WithLabelValues(schedule, "failed").Inc()
		return
	}
	m.ClaimsTotal.WithLabelValues(schedule, "ok").Inc()
	m.ClaimedAmountTotal.WithLabelValues(asset).Add(amount)
}

func (m *VestingMetrics) Migrated() {
	if m == nil {
		return
	}
	m.MigrationsTotal.Inc()
}

func (m *VestingMetrics) Swept(asset string, amount float64) {
	if m == nil {
		return
	}
	m.SweptAmountTotal.WithLabelValues(asset).Add(amount)
}

func (m *VestingMetrics) Relayed(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.EventsRelayedTotal.WithLabelValues(result).Inc()
}

func (m *VestingMetrics) Consumed(eventType string) {
	if m == nil {
		return
	}
	m.EventsConsumedTotal.WithLabelValues(eventType).Inc()
}

func (m *VestingMetrics) Escrow(asset string, allocated, unallocated float64) {
	if m == nil {
		return
	}
	m.Allocated.WithLabelValues(asset).Set(allocated)
	m.Unallocated.WithLabelValues(asset).Set(unallocated)
}

func (m *VestingMetrics) ObserveReport(start time.Time) {
	if m == nil {
		return
	}
	m.ReportDuration.Observe(time.Since(start).Seconds())
}

// Package metrics wires the pool and tracker's abstract metric sinks (§6,
// §9 "Metrics" of the design) to github.com/prometheus/client_golang,
// labeled the way the gauge names in the specification are shaped:
// per-entrypoint for the pool, per-sender for the tracker.
package metrics

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics is the sink OperationPool reports its four size/count gauges
// to after every mutating call.
type PoolMetrics interface {
	SetNumOpsInPool(entrypoint common.Address, n float64)
	SetPoolSizeBytes(entrypoint common.Address, n float64)
	SetNumOpsInCache(entrypoint common.Address, n float64)
	SetCacheSizeBytes(entrypoint common.Address, n float64)
}

// TrackerMetrics is the sink TransactionTracker reports its per-sender
// submission-state gauges to.
type TrackerMetrics interface {
	SetNumPendingTransactions(sender common.Address, n float64)
	SetNonce(sender common.Address, n float64)
	SetAttemptCount(sender common.Address, n float64)
	SetCurrentMaxFeePerGas(sender common.Address, n float64)
	SetCurrentMaxPriorityFeePerGas(sender common.Address, n float64)
}

type prometheusPoolMetrics struct {
	numOpsInPool  *prometheus.GaugeVec
	poolSizeBytes *prometheus.GaugeVec
	numOpsInCache *prometheus.GaugeVec
	cacheSizeBytes *prometheus.GaugeVec
}

// NewPrometheusPoolMetrics registers and returns a PoolMetrics implementation
// backed by the given registerer. Pass a fresh prometheus.Registry in tests
// to avoid collisions with the global default registerer.
func NewPrometheusPoolMetrics(reg prometheus.Registerer) PoolMetrics {
	m := &prometheusPoolMetrics{
		numOpsInPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "op_pool_num_ops_in_pool",
			Help: "Number of user operations currently resident in the pool.",
		}, []string{"entrypoint"}),
		poolSizeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "op_pool_size_bytes",
			Help: "Estimated byte size of all operations currently resident in the pool.",
		}, []string{"entrypoint"}),
		numOpsInCache: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "op_pool_num_ops_in_cache",
			Help: "Number of mined operations currently held in the reorg cache.",
		}, []string{"entrypoint"}),
		cacheSizeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "op_pool_cache_size_bytes",
			Help: "Estimated byte size of the reorg cache.",
		}, []string{"entrypoint"}),
	}
	reg.MustRegister(m.numOpsInPool, m.poolSizeBytes, m.numOpsInCache, m.cacheSizeBytes)
	return m
}

func (m *prometheusPoolMetrics) SetNumOpsInPool(entrypoint common.Address, n float64) {
	m.numOpsInPool.WithLabelValues(entrypoint.Hex()).Set(n)
}

func (m *prometheusPoolMetrics) SetPoolSizeBytes(entrypoint common.Address, n float64) {
	m.poolSizeBytes.WithLabelValues(entrypoint.Hex()).Set(n)
}

func (m *prometheusPoolMetrics) SetNumOpsInCache(entrypoint common.Address, n float64) {
	m.numOpsInCache.WithLabelValues(entrypoint.Hex()).Set(n)
}

func (m *prometheusPoolMetrics) SetCacheSizeBytes(entrypoint common.Address, n float64) {
	m.cacheSizeBytes.WithLabelValues(entrypoint.Hex()).Set(n)
}

type prometheusTrackerMetrics struct {
	numPending         *prometheus.GaugeVec
	nonce              *prometheus.GaugeVec
	attemptCount       *prometheus.GaugeVec
	maxFeePerGas       *prometheus.GaugeVec
	maxPriorityFeePerGas *prometheus.GaugeVec
}

// NewPrometheusTrackerMetrics registers and returns a TrackerMetrics
// implementation backed by the given registerer.
func NewPrometheusTrackerMetrics(reg prometheus.Registerer) TrackerMetrics {
	m := &prometheusTrackerMetrics{
		numPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "builder_tracker_num_pending_transactions",
			Help: "Number of transaction attempts currently tracked for a sender.",
		}, []string{"sender"}),
		nonce: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "builder_tracker_nonce",
			Help: "Tracker's current view of the sender's nonce.",
		}, []string{"sender"}),
		attemptCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "builder_tracker_attempt_count",
			Help: "Number of replacement attempts made for the sender's current nonce.",
		}, []string{"sender"}),
		maxFeePerGas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "builder_tracker_current_max_fee_per_gas",
			Help: "Max fee per gas of the most recent attempt.",
		}, []string{"sender"}),
		maxPriorityFeePerGas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "builder_tracker_current_max_priority_fee_per_gas",
			Help: "Max priority fee per gas of the most recent attempt.",
		}, []string{"sender"}),
	}
	reg.MustRegister(m.numPending, m.nonce, m.attemptCount, m.maxFeePerGas, m.maxPriorityFeePerGas)
	return m
}

func (m *prometheusTrackerMetrics) SetNumPendingTransactions(sender common.Address, n float64) {
	m.numPending.WithLabelValues(sender.Hex()).Set(n)
}

func (m *prometheusTrackerMetrics) SetNonce(sender common.Address, n float64) {
	m.nonce.WithLabelValues(sender.Hex()).Set(n)
}

func (m *prometheusTrackerMetrics) SetAttemptCount(sender common.Address, n float64) {
	m.attemptCount.WithLabelValues(sender.Hex()).Set(n)
}

func (m *prometheusTrackerMetrics) SetCurrentMaxFeePerGas(sender common.Address, n float64) {
	m.maxFeePerGas.WithLabelValues(sender.Hex()).Set(n)
}

func (m *prometheusTrackerMetrics) SetCurrentMaxPriorityFeePerGas(sender common.Address, n float64) {
	m.maxPriorityFeePerGas.WithLabelValues(sender.Hex()).Set(n)
}

// NoopPoolMetrics and NoopTrackerMetrics are used where no metrics sink has
// been wired (e.g. unit tests that don't care about metrics output).
type NoopPoolMetrics struct{}

func (NoopPoolMetrics) SetNumOpsInPool(common.Address, float64)  {}
func (NoopPoolMetrics) SetPoolSizeBytes(common.Address, float64) {}
func (NoopPoolMetrics) SetNumOpsInCache(common.Address, float64) {}
func (NoopPoolMetrics) SetCacheSizeBytes(common.Address, float64) {}

type NoopTrackerMetrics struct{}

func (NoopTrackerMetrics) SetNumPendingTransactions(common.Address, float64)       {}
func (NoopTrackerMetrics) SetNonce(common.Address, float64)                        {}
func (NoopTrackerMetrics) SetAttemptCount(common.Address, float64)                 {}
func (NoopTrackerMetrics) SetCurrentMaxFeePerGas(common.Address, float64)          {}
func (NoopTrackerMetrics) SetCurrentMaxPriorityFeePerGas(common.Address, float64)  {}

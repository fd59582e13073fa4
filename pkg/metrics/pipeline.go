package metrics

import "github.com/prometheus/client_golang/prometheus"

// 评分与结算流水线指标，随 InitMetrics 注册.
var (
	// OracleCalls 预言机调用次数，outcome 取 ok / error / rejected.
	OracleCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datanexus",
			Name:      "oracle_calls_total",
			Help:      "Total number of oracle calls by outcome",
		},
		[]string{"oracle", "outcome"},
	)

	// OracleDuration 预言机调用耗时.
	OracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "datanexus",
			Name:      "oracle_call_duration_seconds",
			Help:      "Oracle call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"oracle"},
	)

	// SubmissionsProcessed 处理完成的提交数.
	SubmissionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datanexus",
			Name:      "submissions_processed_total",
			Help:      "Total number of processed submissions by kind and status",
		},
		[]string{"kind", "status"},
	)

	// SettledItems 成交条目数.
	SettledItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datanexus",
			Name:      "market_settled_items_total",
			Help:      "Total number of items sold",
		},
		[]string{"category"},
	)

	// SettledValue 成交金额.
	SettledValue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datanexus",
			Name:      "market_settled_value_total",
			Help:      "Total value distributed by settlements",
		},
		[]string{"category"},
	)

	// SettlementConflicts 认领冲突次数.
	SettlementConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "datanexus",
			Name:      "market_claim_conflicts_total",
			Help:      "Total number of lost optimistic claims",
		},
	)
)

func pipelineCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		OracleCalls,
		OracleDuration,
		SubmissionsProcessed,
		SettledItems,
		SettledValue,
		SettlementConflicts,
	}
}

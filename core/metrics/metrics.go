package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_engine_executions_total",
		Help: "The total number of swap executions by terminal status",
	}, []string{"status", "profile"})

	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swap_engine_execution_seconds",
		Help:    "Wall time of one swap execution",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"profile"})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_engine_retries_total",
		Help: "The total number of retry loop iterations by classified error code",
	}, []string{"code"})

	RequotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_engine_requotes_total",
		Help: "The total number of quote refreshes forced by execution errors",
	})

	RiskBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_engine_risk_blocks_total",
		Help: "The total number of swaps blocked by protected mode",
	}, []string{"level"})

	RiskWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_engine_risk_warnings_total",
		Help: "The total number of non-green risk assessments that proceeded",
	}, []string{"level"})

	ConfirmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_engine_confirm_seconds",
		Help:    "Time from broadcast to confirmed commitment",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
	})

	PriorityFeeGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swap_engine_priority_fee_micro_lamports",
		Help: "Last recommended compute unit price by tier",
	}, []string{"tier"})

	ReceiptEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_engine_receipt_events_total",
		Help: "The total number of execution events recorded",
	}, []string{"event_type"})

	FatalErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_engine_fatal_errors_total",
		Help: "The total number of errors classified fatal, never retried",
	}, []string{"code"})
)

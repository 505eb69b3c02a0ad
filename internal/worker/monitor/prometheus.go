package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// RoundsTotal 分发轮次，按结果区分
	RoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fee_distributor_rounds_total",
			Help: "Total number of distribution rounds by outcome.",
		},
		[]string{"outcome"},
	)
	RoundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fee_distributor_round_duration_seconds",
			Help:    "Time taken by one distribution round.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	RunnerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fee_distributor_state",
			Help: "Current runner state as its numeric value.",
		},
	)
	WithdrawnTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fee_distributor_withdrawn_tokens_total",
			Help: "Total withheld tokens withdrawn to the operator account, in base units.",
		},
	)
	YieldLamports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fee_distributor_yield_lamports_total",
			Help: "Total lamports gained from fee conversion.",
		},
	)
	TransactionsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fee_distributor_transactions_total",
			Help: "Transactions sent by kind and result.",
		},
		[]string{"kind", "result"},
	)
	TransactionShrinks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fee_distributor_transaction_shrinks_total",
			Help: "Items dropped from oversized transactions.",
		},
		[]string{"kind"},
	)
	PayoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fee_distributor_payouts_total",
			Help: "Payout instructions by reward and status.",
		},
		[]string{"reward", "status"},
	)
	HolderRequeues = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fee_distributor_holder_requeues_total",
			Help: "Holders pushed back to the queue after a failed batch.",
		},
	)

	// AsyncWriterMessagesQueued AsyncWriter 指标
	AsyncWriterMessagesQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_queued_total",
			Help: "Total number of messages queued to async writer.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_dropped_total",
			Help: "Total number of messages dropped due to full queue.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_batch_size",
			Help:    "Number of items in each batch submitted to the writer.",
			Buckets: []float64{1, 10, 50, 100, 200, 500},
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_flush_count_total",
			Help: "Total number of batch flushes triggered.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_flush_duration_seconds",
			Help:    "Time taken to flush a batch.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"writer_id"},
	)
	AsyncWriterItemsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_items_written_total",
			Help: "Total number of items successfully written by the async writer.",
		},
		[]string{"writer_id"},
	)
)

func init() {
	prometheus.MustRegister(
		// 分发指标
		RoundsTotal,
		RoundDuration,
		RunnerState,
		WithdrawnTokens,
		YieldLamports,
		TransactionsSent,
		TransactionShrinks,
		PayoutsTotal,
		HolderRequeues,

		// async 写入指标
		AsyncWriterMessagesQueued,
		AsyncWriterMessagesDropped,
		AsyncWriterBatchSize,
		AsyncWriterFlushCount,
		AsyncWriterFlushDuration,
		AsyncWriterItemsWritten,
	)
}

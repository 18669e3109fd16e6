package batcher

import "github.com/prometheus/client_golang/prometheus"

var (
	outstandingBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mutbatch_batcher_outstanding_bytes",
		Help: "Bytes admitted and not yet resolved",
	})

	outstandingBatchesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mutbatch_batcher_outstanding_batches",
		Help: "Batches sent and not yet attempt-finished",
	})

	pendingWritesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mutbatch_batcher_pending_writes",
		Help: "Writes queued waiting for admission",
	})

	writesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mutbatch_batcher_writes_total",
		Help: "Writes by stage (submitted, admitted, rejected)",
	}, []string{"stage"})

	completedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mutbatch_batcher_completed_total",
		Help: "Writes resolved by the transport by outcome",
	}, []string{"outcome"})

	flushedBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mutbatch_batcher_flushed_batches_total",
		Help: "Batches handed to the transport",
	})

	ignoredReportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mutbatch_batcher_ignored_reports_total",
		Help: "Completion reports naming an unknown or already resolved index",
	})

	batchMutations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mutbatch_batcher_batch_mutations",
		Help:    "Cell mutations per flushed batch",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	batchBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mutbatch_batcher_batch_bytes",
		Help:    "Serialized bytes per flushed batch",
		Buckets: prometheus.ExponentialBuckets(256, 4, 12),
	})
)

func init() {
	prometheus.MustRegister(outstandingBytesGauge)
	prometheus.MustRegister(outstandingBatchesGauge)
	prometheus.MustRegister(pendingWritesGauge)
	prometheus.MustRegister(writesTotal)
	prometheus.MustRegister(completedTotal)
	prometheus.MustRegister(flushedBatchesTotal)
	prometheus.MustRegister(ignoredReportsTotal)
	prometheus.MustRegister(batchMutations)
	prometheus.MustRegister(batchBytes)
}

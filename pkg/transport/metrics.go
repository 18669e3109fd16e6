package transport

import "github.com/prometheus/client_golang/prometheus"

var (
	attemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mutbatch_transport_attempts_total",
		Help: "Bulk apply attempts by transport and result",
	}, []string{"transport", "result"})

	retriedEntriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mutbatch_transport_retried_entries_total",
		Help: "Entries carried over to another attempt after a retryable error",
	})

	entriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mutbatch_transport_entries_total",
		Help: "Entries resolved by the transport by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(attemptsTotal)
	prometheus.MustRegister(retriedEntriesTotal)
	prometheus.MustRegister(entriesTotal)

	retriedEntriesTotal.Add(0)
}

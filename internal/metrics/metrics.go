package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollbook",
		Name:      "snapshots_committed_total",
		Help:      "Attendance snapshots written.",
	})

	RecordsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollbook",
		Name:      "records_committed_total",
		Help:      "Attendance records written, by status.",
	}, []string{"status"})

	// MalformedValues counts stored values that failed to decode and were read as empty.
	MalformedValues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollbook",
		Name:      "malformed_values_total",
		Help:      "Persisted values that could not be decoded.",
	}, []string{"collection"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollbook",
		Name:      "store_errors_total",
		Help:      "Key-value backend failures, by operation.",
	}, []string{"op"})

	ActivityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollbook",
		Name:      "activity_events_total",
		Help:      "Activity feed messages, by outcome.",
	}, []string{"outcome"})
)

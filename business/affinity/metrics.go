package affinity

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BatchRowsTouchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_batch_rows_touched_total",
			Help: "Count of affinity rows written by batch scoring runs.",
		},
	)

	BatchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_batch_failures_total",
			Help: "Count of failed batch runs by stage (aggregation, persistence).",
		},
		[]string{"stage"},
	)

	GCRowsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_gc_rows_deleted_total",
			Help: "Count of affinity rows removed by the retention sweep.",
		},
	)

	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_events_ingested_total",
			Help: "Count of behavioral events accepted, by event type.",
		},
		[]string{"event_type"},
	)

	EventsWithoutSubjectTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_events_without_subject_total",
			Help: "Count of accepted events carrying no subject attribute; these never reach scoring.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		BatchRowsTouchedTotal,
		BatchFailuresTotal,
		GCRowsDeletedTotal,
		EventsIngestedTotal,
		EventsWithoutSubjectTotal,
	)
}

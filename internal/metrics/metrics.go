package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ObservationsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_observations_ingested_total",
		Help: "Observation events accepted from the detection pipeline.",
	})

	VehiclesObserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_vehicles_observed_total",
		Help: "Vehicles counted across all ingested observations.",
	})

	IncidentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_incidents_recorded_total",
		Help: "Incident log entries written.",
	})

	RecommendationsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_recommendations_deduplicated_total",
		Help: "Recommendations dropped as repeats inside the dedup window.",
	})

	StoreSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_store_save_failures_total",
		Help: "Document persistence attempts that failed and were swallowed.",
	})
)

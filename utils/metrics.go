package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdapterCalls counts adapter calls by adapter, operation and outcome kind.
	AdapterCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visaflow_adapter_calls_total",
		Help: "Adapter calls by adapter, operation and outcome",
	}, []string{"adapter", "operation", "outcome"})

	// AdapterLatency tracks adapter call latency.
	AdapterLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visaflow_adapter_call_duration_seconds",
		Help:    "Adapter call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"adapter", "operation"})

	// BookingOutcomes counts finished booking calls by method and result.
	BookingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visaflow_booking_results_total",
		Help: "Booking results by method and success",
	}, []string{"method", "success"})

	// VacancyAlerts counts alerts emitted by the monitoring loop.
	VacancyAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visaflow_vacancy_alerts_total",
		Help: "Vacancy alerts emitted per target",
	}, []string{"target"})

	// MonitorPollErrors counts failed polls per target.
	MonitorPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visaflow_monitor_poll_errors_total",
		Help: "Failed monitoring polls per target",
	}, []string{"target"})
)

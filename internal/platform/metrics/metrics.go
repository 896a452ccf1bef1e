package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consenthub_http_requests_total",
		Help: "Total number of HTTP requests handled",
	},
	[]string{"route", "method", "status"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "consenthub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "method"},
)

var RateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "consenthub_rate_limit_rejections_total",
		Help: "Total number of HTTP requests rejected by the rate limiter",
	},
)

var DSARTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consenthub_dsar_transitions_total",
		Help: "DSAR status transitions by source and target status",
	},
	[]string{"from", "to"},
)

var DSARProcessingDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "consenthub_dsar_processing_duration_seconds",
		Help:    "Time spent in automated DSAR processing",
		Buckets: []float64{0.5, 1, 2, 3, 5, 10, 30},
	},
	[]string{"request_type", "outcome"},
)

var DSAROverdueRequests = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "consenthub_dsar_overdue_requests",
		Help: "Open DSAR requests past their due date at the last sweep",
	},
)

var ConsentChangesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consenthub_consent_changes_total",
		Help: "Consent records created or updated, by resulting status",
	},
	[]string{"status", "consent_type"},
)

var WebhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consenthub_webhook_deliveries_total",
		Help: "Webhook delivery attempts by event type and outcome",
	},
	[]string{"event_type", "outcome"},
)

var JobRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consenthub_job_runs_total",
		Help: "Background job runs by type and outcome",
	},
	[]string{"job_type", "outcome"},
)

var JobsDroppedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consenthub_jobs_dropped_total",
		Help: "Jobs dropped because the queue was full",
	},
	[]string{"job_type"},
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RateLimitRejectionsTotal,
		DSARTransitionsTotal,
		DSARProcessingDuration,
		DSAROverdueRequests,
		ConsentChangesTotal,
		WebhookDeliveriesTotal,
		JobRunsTotal,
		JobsDroppedTotal,
	}
}

// Register adds every ConsentHub collector to reg. Collectors that are
// already registered are left alone so repeated app construction in tests
// does not panic.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "excursion_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "excursion_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	domainErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "excursion_domain_errors_total",
			Help: "Errors returned to clients, by code",
		},
		[]string{"code"},
	)

	pledgedAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "excursion_pledged_amount_total",
			Help: "Sum of all accepted pledge amounts",
		},
	)

	votesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "excursion_votes_total",
			Help: "Votes cast, by step",
		},
		[]string{"step"},
	)

	outboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "excursion_outbox_messages_total",
			Help: "Outbox messages processed, by result",
		},
		[]string{"result"},
	)

	consumedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "excursion_consumed_messages_total",
			Help: "Identity messages consumed, by routing key and result",
		},
		[]string{"routing_key", "result"},
	)

	activeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "excursion_active_subscriptions",
			Help: "Open snapshot subscriptions",
		},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "excursion_cache_lookups_total",
			Help: "Snapshot cache lookups, by result",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordDomainError(code string) { domainErrorsTotal.WithLabelValues(code).Inc() }

func RecordPledge(amount int64) { pledgedAmountTotal.Add(float64(amount)) }

func RecordVote(step string) { votesTotal.WithLabelValues(step).Inc() }

func RecordOutbox(result string) { outboxPublishedTotal.WithLabelValues(result).Inc() }

func RecordConsumed(routingKey, result string) {
	consumedMessagesTotal.WithLabelValues(routingKey, result).Inc()
}

func SubscriptionOpened() { activeSubscriptions.Inc() }
func SubscriptionClosed() { activeSubscriptions.Dec() }

func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

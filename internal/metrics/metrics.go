package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taskboard"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	eventsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_enqueued_total",
			Help:      "Task change events accepted by the notification queue.",
		},
		[]string{"kind"},
	)

	enqueueFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_enqueue_failed_total",
			Help:      "Task change events that could not be enqueued.",
		},
	)

	eventsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_skipped_total",
			Help:      "Consumed change events that produced no delivery.",
		},
		[]string{"reason"},
	)

	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_deliveries_total",
			Help:      "Outbound Telegram messages by result.",
		},
		[]string{"result"},
	)

	pollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_poll_errors_total",
			Help:      "Failed getUpdates calls.",
		},
	)

	bindingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_bindings_total",
			Help:      "Completed account to chat handshakes.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			eventsEnqueued,
			enqueueFailures,
			eventsSkipped,
			deliveries,
			pollErrors,
			bindingsCreated,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncEnqueued(kind string) {
	eventsEnqueued.WithLabelValues(kind).Inc()
}

func IncEnqueueFailed() {
	enqueueFailures.Inc()
}

// IncSkipped counts consumed events that were not delivered, e.g. "unimportant" or "no_recipients".
func IncSkipped(reason string) {
	eventsSkipped.WithLabelValues(reason).Inc()
}

func IncDelivery(ok bool) {
	if ok {
		deliveries.WithLabelValues("sent").Inc()
		return
	}
	deliveries.WithLabelValues("failed").Inc()
}

func IncPollError() {
	pollErrors.Inc()
}

func IncBinding() {
	bindingsCreated.Inc()
}

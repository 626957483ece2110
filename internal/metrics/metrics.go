package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── Detection cycle metrics ────────────────────────────────────────────

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "cycle",
		Name:      "total",
		Help:      "Total detection cycles by terminal status.",
	}, []string{"status"})

	ChangesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "cycle",
		Name:      "changes_detected_total",
		Help:      "Total qualifying ratio changes.",
	})

	WritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "store",
		Name:      "writes_total",
		Help:      "Daily series writes by outcome (inserted/updated).",
	}, []string{"outcome"})

	CurrentRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "cycle",
		Name:      "current_ratio",
		Help:      "Most recently observed Sushi/xSushi ratio.",
	})
)

// ── Notification metrics ───────────────────────────────────────────────

var (
	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Notifications successfully delivered.",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "notify",
		Name:      "failed_total",
		Help:      "Notification delivery failures.",
	})

	SubscribersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "notify",
		Name:      "subscribers_active",
		Help:      "Number of registered subscribers.",
	})
)

// ── Enrichment cache metrics ───────────────────────────────────────────

var (
	EnrichmentLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "enrich",
		Name:      "lookups_total",
		Help:      "Treasury cache lookups by result (hit/miss/error).",
	}, []string{"result"})
)

// ── HTTP request metrics ───────────────────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xsushiwatcher",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

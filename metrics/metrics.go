// Package metrics defines the Prometheus instruments exposed on /metrics.
// Everything registers against the default registry, so promhttp.Handler
// serves it without extra wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vibarr"

var (
	// JobRuns counts scheduler task completions by outcome.
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduler task runs by job and result",
		},
		[]string{"job", "result"},
	)

	// JobDuration tracks how long scheduler tasks take. Buckets run up to
	// the one hour hard limit.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_duration_seconds",
			Help:      "Duration of scheduler task runs in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
		[]string{"job"},
	)

	// QueueDepth is the number of tasks waiting for a worker.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_queue_depth",
			Help:      "Tasks queued for the scheduler worker pool",
		},
	)

	// DownloadTransitions counts pipeline state transitions by target state.
	DownloadTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_transitions_total",
			Help:      "Download pipeline transitions by target state",
		},
		[]string{"state"},
	)

	// ActiveDownloads is the number of downloads between grab and completion.
	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_active",
			Help:      "Downloads currently queued or downloading",
		},
	)

	// SearchesTotal counts indexer searches by outcome.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "release_searches_total",
			Help:      "Release searches by result",
		},
		[]string{"result"},
	)

	// GrabsTotal counts release grabs by protocol and outcome.
	GrabsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grabs_total",
			Help:      "Release grabs sent to download clients",
		},
		[]string{"protocol", "result"},
	)

	// ImportsTotal counts beets import attempts by outcome.
	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Library imports by result",
		},
		[]string{"result"},
	)

	// RecommendationsGenerated counts persisted recommendations by category.
	RecommendationsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_generated_total",
			Help:      "Recommendations persisted by category",
		},
		[]string{"category"},
	)

	// RuleActions counts automation rule action executions by outcome.
	RuleActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_actions_total",
			Help:      "Automation rule actions by type and result",
		},
		[]string{"action", "result"},
	)

	// LibraryItems is the media library size by entity, refreshed after
	// every library sync.
	LibraryItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "library_items",
			Help:      "Library entities by type",
		},
		[]string{"entity"},
	)

	// WebsocketClients is the number of connected download-event listeners.
	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		},
	)

	// EventsPublished counts download events fanned out to subscribers.
	EventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Download events published",
		},
	)
)

func init() {
	prometheus.MustRegister(
		JobRuns,
		JobDuration,
		QueueDepth,
		DownloadTransitions,
		ActiveDownloads,
		SearchesTotal,
		GrabsTotal,
		ImportsTotal,
		RecommendationsGenerated,
		RuleActions,
		LibraryItems,
		WebsocketClients,
		EventsPublished,
	)
}

// RecordJobRun records one scheduler task completion.
func RecordJobRun(job, result string, seconds float64) {
	JobRuns.WithLabelValues(job, result).Inc()
	JobDuration.WithLabelValues(job).Observe(seconds)
}

// RecordTransition records a download entering a pipeline state.
func RecordTransition(state string) {
	DownloadTransitions.WithLabelValues(state).Inc()
}

// RecordGrab records a grab attempt.
func RecordGrab(protocol string, ok bool) {
	GrabsTotal.WithLabelValues(protocol, result(ok)).Inc()
}

// RecordImport records a beets import attempt.
func RecordImport(ok bool) {
	ImportsTotal.WithLabelValues(result(ok)).Inc()
}

// RecordRuleAction records one rule action execution.
func RecordRuleAction(action string, ok bool) {
	RuleActions.WithLabelValues(action, result(ok)).Inc()
}

// RecordRecommendations records persisted recommendations for one category.
func RecordRecommendations(category string, n int) {
	RecommendationsGenerated.WithLabelValues(category).Add(float64(n))
}

// SetLibrarySize publishes the library entity counts.
func SetLibrarySize(artists, albums, tracks int) {
	LibraryItems.WithLabelValues("artist").Set(float64(artists))
	LibraryItems.WithLabelValues("album").Set(float64(albums))
	LibraryItems.WithLabelValues("track").Set(float64(tracks))
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

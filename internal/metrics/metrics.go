// Package metrics exposes Prometheus instrumentation for credential runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Secret fetch results.
const (
	FetchSuccess = "success"
	FetchError   = "error"
)

// Recorder holds the pipeline metrics. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	listPages   *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	duration    prometheus.Histogram
	credentials *prometheus.GaugeVec
	declined    *prometheus.CounterVec
}

var (
	defaultRecorder *Recorder

	// metricsOnce ensures the default metrics are only registered once.
	metricsOnce sync.Once
)

// Default returns the recorder registered with the default Prometheus
// registry, registering it on first use.
func Default() *Recorder {
	metricsOnce.Do(func() {
		defaultRecorder = New(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// New registers a fresh set of metrics with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		listPages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smcreds_list_pages_total",
			Help: "Total number of secret listing pages read, by client",
		}, []string{"client"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smcreds_secret_fetch_total",
			Help: "Total number of secret value fetches, by result",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "smcreds_pipeline_duration_seconds",
			Help:    "Duration of credential pipeline runs",
			Buckets: prometheus.DefBuckets,
		}),
		credentials: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smcreds_credentials",
			Help: "Number of credentials produced by the last run, by type",
		}, []string{"type"}),
		declined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smcreds_declined_total",
			Help: "Total number of entries declined by the credential factory, by reason",
		}, []string{"reason"}),
	}
}

// ListPage counts one listing page read from client.
func (r *Recorder) ListPage(client string) {
	if r == nil {
		return
	}
	r.listPages.WithLabelValues(client).Inc()
}

// SecretFetch counts one fetch with result FetchSuccess or FetchError.
func (r *Recorder) SecretFetch(result string) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(result).Inc()
}

// ObserveRun records the duration of a run started at start.
func (r *Recorder) ObserveRun(start time.Time) {
	if r == nil {
		return
	}
	r.duration.Observe(time.Since(start).Seconds())
}

// SetCredentials replaces the per-type credential counts.
func (r *Recorder) SetCredentials(byType map[string]int) {
	if r == nil {
		return
	}
	r.credentials.Reset()
	for t, n := range byType {
		r.credentials.WithLabelValues(t).Set(float64(n))
	}
}

// Declined counts one declined entry.
func (r *Recorder) Declined(reason string) {
	if r == nil {
		return
	}
	r.declined.WithLabelValues(reason).Inc()
}

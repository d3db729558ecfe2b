// Package metrics exposes Prometheus collectors for descent runs and jobs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/plutobench/internal/optimization"
)

const namespace = "plutobench"

// Recorder owns the collectors. Each Recorder registers into its own
// registry so tests can create as many as they like.
type Recorder struct {
	registry *prometheus.Registry

	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	duration   prometheus.Histogram
	failures   *prometheus.CounterVec
	jobs       *prometheus.GaugeVec
	descriptor prometheus.Counter
}

// New creates a Recorder with Go and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descent_runs_total",
			Help:      "Completed heavy-ball runs by convergence outcome.",
		}, []string{"converged"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "descent_iterations",
			Help:      "Iterations performed per heavy-ball run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "descent_duration_seconds",
			Help:      "Wall time per heavy-ball run.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descent_failures_total",
			Help:      "Runs rejected or aborted, by reason.",
		}, []string{"reason"}),
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Tracked descent jobs by state.",
		}, []string{"state"}),
		descriptor: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_descriptors_served_total",
			Help:      "Launch descriptors handed out.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runs, r.iterations, r.duration, r.failures, r.jobs, r.descriptor,
	)
	return r
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(res *optimization.Result, elapsed time.Duration) {
	r.runs.WithLabelValues(strconv.FormatBool(res.Converged)).Inc()
	r.iterations.Observe(float64(res.Iterations))
	r.duration.Observe(elapsed.Seconds())
}

// ObserveFailure records a run that produced no result.
func (r *Recorder) ObserveFailure(reason string) {
	r.failures.WithLabelValues(reason).Inc()
}

// SetJobs sets the number of jobs in a state.
func (r *Recorder) SetJobs(state string, n int) {
	r.jobs.WithLabelValues(state).Set(float64(n))
}

// DescriptorServed counts a launch descriptor response.
func (r *Recorder) DescriptorServed() {
	r.descriptor.Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

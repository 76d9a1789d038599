// Package metrics counts run outcomes and optionally dumps them in the Prometheus
// text exposition format for node_exporter's textfile collector.
package metrics

import (
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	registry *prometheus.Registry

	resolutions *prometheus.CounterVec
	prompts     *prometheus.CounterVec
	drawRetries prometheus.Counter
	restarts    prometheus.Counter
	assignments *prometheus.CounterVec
	schoolRuns  *prometheus.CounterVec
	objective   prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admissions",
			Name:      "resolutions_total",
			Help:      "Institution name resolutions by outcome source.",
		}, []string{"source"}),
		prompts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admissions",
			Name:      "prompts_total",
			Help:      "Operator decisions requested by kind.",
		}, []string{"kind"}),
		drawRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "admissions",
			Name:      "draw_retries_total",
			Help:      "Reshuffles caused by a duplicate candidate in a reader draw.",
		}),
		restarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "admissions",
			Name:      "assignment_restarts_total",
			Help:      "Randomized assignments discarded and regenerated from scratch.",
		}),
		assignments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admissions",
			Name:      "assignments_total",
			Help:      "Completed reading assignments by method.",
		}, []string{"method"}),
		schoolRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admissions",
			Name:      "school_matches_total",
			Help:      "Applicants processed by the school assigner by result.",
		}, []string{"result"}),
		objective: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "admissions",
			Name:      "optimizer_objective",
			Help:      "Total reward of the last optimized assignment.",
		}),
	}
}

func (r *Recorder) Resolution(source string) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(source).Inc()
}

func (r *Recorder) Prompt(kind string) {
	if r == nil {
		return
	}
	r.prompts.WithLabelValues(kind).Inc()
}

func (r *Recorder) DrawRetry() {
	if r == nil {
		return
	}
	r.drawRetries.Inc()
}

func (r *Recorder) Restart() {
	if r == nil {
		return
	}
	r.restarts.Inc()
}

func (r *Recorder) Assignment(method string) {
	if r == nil {
		return
	}
	r.assignments.WithLabelValues(method).Inc()
}

func (r *Recorder) SchoolMatch(result string) {
	if r == nil {
		return
	}
	r.schoolRuns.WithLabelValues(result).Inc()
}

func (r *Recorder) Objective(v float64) {
	if r == nil {
		return
	}
	r.objective.Set(v)
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// WriteTextfile writes all collected metrics to path. An empty path is ignored.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}

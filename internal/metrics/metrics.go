// Package metrics exposes editor activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry with the editor metrics.
type Recorder struct {
	registry *prometheus.Registry

	mutations      *prometheus.CounterVec
	undos          prometheus.Counter
	saves          *prometheus.CounterVec
	saveDuration   prometheus.Histogram
	layoutDuration prometheus.Histogram
	repoCalls      *prometheus.CounterVec
	repoDuration   *prometheus.HistogramVec
}

// New creates a recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bozchat_editor_mutations_total",
				Help: "Total number of graph mutations applied",
			},
			[]string{"op"},
		),
		undos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bozchat_editor_undo_total",
			Help: "Total number of snapshots restored",
		}),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bozchat_editor_saves_total",
				Help: "Total number of instance saves by result",
			},
			[]string{"result"},
		),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bozchat_editor_save_duration_seconds",
			Help:    "Duration of instance saves",
			Buckets: prometheus.DefBuckets,
		}),
		layoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bozchat_editor_layout_duration_seconds",
			Help:    "Duration of layout computations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		repoCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bozchat_repository_calls_total",
				Help: "Total number of repository calls by method and result",
			},
			[]string{"method", "result"},
		),
		repoDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bozchat_repository_call_duration_seconds",
				Help:    "Duration of repository calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	r.registry.MustRegister(
		r.mutations, r.undos, r.saves, r.saveDuration, r.layoutDuration,
		r.repoCalls, r.repoDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Hooks returns editor hooks feeding the recorder.
func (r *Recorder) Hooks() domain.EditorHooks {
	return domain.EditorHooks{
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			r.mutations.WithLabelValues(e.Op).Inc()
			if e.Op == domain.OpUndo {
				r.undos.Inc()
			}
		},
		OnSave: func(_ context.Context, e *domain.SaveEvent) {
			r.saves.WithLabelValues(result(e.Err)).Inc()
			r.saveDuration.Observe(e.Duration.Seconds())
		},
		OnLayout: func(_ context.Context, e *domain.LayoutEvent) {
			r.layoutDuration.Observe(e.Duration.Seconds())
		},
	}
}

// ObserveRepository records one repository call.
func (r *Recorder) ObserveRepository(method string, took time.Duration, err error) {
	r.repoCalls.WithLabelValues(method, result(err)).Inc()
	r.repoDuration.WithLabelValues(method).Observe(took.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

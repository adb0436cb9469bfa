// Package metrics exposes engine activity as Prometheus counters.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"autoeval/internal/logging"
	"autoeval/internal/sequencer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autoeval"

// Recorder turns sequencer events into metrics. Each Recorder owns its
// registry so several engines (or tests) never collide.
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	entities      *prometheus.CounterVec
	items         *prometheus.CounterVec
	labels        *prometheus.CounterVec
	missing       *prometheus.CounterVec
	warnings      prometheus.Counter
	saves         prometheus.Counter
	runDuration   prometheus.Histogram
	entitySeconds prometheus.Histogram
	active        prometheus.Gauge

	// entered is only touched from the run goroutine, where observers run.
	entered time.Time
}

// NewRecorder registers every collector on a fresh registry, together with
// the Go and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Count of finished runs by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		entities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_total",
				Help:      "Count of entities processed, split into complete and empty.",
			},
			[]string{"result"},
		),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Count of items by what happened to them.",
			},
			[]string{"result"},
		),
		labels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_labels_total",
				Help:      "Count of items set, by the label chosen for them.",
			},
			[]string{"label"},
		),
		missing: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_missing_total",
				Help:      "Count of actions skipped because their control was not found.",
			},
			[]string{"action"},
		),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Count of non-fatal warnings raised by the engine.",
		}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Count of save clicks.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
		}),
		entitySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_duration_seconds",
			Help:      "Time from entering an entity to finishing it.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 8),
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while a run is in progress.",
		}),
	}

	r.registry.MustRegister(
		r.runs, r.entities, r.items, r.labels, r.missing,
		r.warnings, r.saves, r.runDuration, r.entitySeconds, r.active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry the recorder writes to.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe is a sequencer.Observer.
func (r *Recorder) Observe(ev sequencer.Event) {
	switch ev.Type {
	case sequencer.EventRunStarted:
		r.active.Set(1)
	case sequencer.EventRunCompleted, sequencer.EventRunStopped, sequencer.EventRunFailed:
		r.active.Set(0)
		if ev.Summary != nil {
			r.runs.WithLabelValues(ev.Summary.Mode.String(), string(ev.Summary.Outcome)).Inc()
			r.runDuration.Observe(ev.Summary.Duration.Seconds())
		}
	case sequencer.EventEntityStarted:
		r.entityStarted(ev.Timestamp)
	case sequencer.EventEntityComplete:
		if ev.Result == nil {
			return
		}
		result := "complete"
		if ev.Result.Empty {
			result = "empty"
		}
		r.entities.WithLabelValues(result).Inc()
		r.saves.Add(float64(ev.Result.Saves))
		r.entityFinished(ev.Timestamp)
	case sequencer.EventItemProcessed:
		r.items.WithLabelValues("set").Inc()
		r.labels.WithLabelValues(ev.Label.String()).Inc()
	case sequencer.EventItemSkipped:
		r.items.WithLabelValues("kept").Inc()
	case sequencer.EventItemError:
		r.items.WithLabelValues("error").Inc()
	case sequencer.EventActionMissing:
		r.missing.WithLabelValues(string(ev.Action)).Inc()
	case sequencer.EventWarning:
		r.warnings.Inc()
	}
}

func (r *Recorder) entityStarted(at time.Time) { r.entered = at }

func (r *Recorder) entityFinished(at time.Time) {
	if r.entered.IsZero() {
		return
	}
	r.entitySeconds.Observe(at.Sub(r.entered).Seconds())
	r.entered = time.Time{}
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes the handler on addr at path until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logging.Metrics("serving metrics on http://%s%s", addr, path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		logging.Metrics("metrics endpoint stopped")
		return nil
	}
}

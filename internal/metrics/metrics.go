// Package metrics exposes turn and stage counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbright/smartspeak/internal/pipeline"
)

const namespace = "smartspeak"

// Recorder implements the pipeline and session observers on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration     *prometheus.HistogramVec
	stageFailures     *prometheus.CounterVec
	turns             *prometheus.CounterVec
	turnDuration      prometheus.Histogram
	deviceUnavailable prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each turn pipeline stage",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 60},
		}, []string{"stage"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Total number of failed pipeline stages",
		}, []string{"stage"}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of finished turns by outcome",
		}, []string{"outcome"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time from capture start to the turn's terminal state",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
		}),
		deviceUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_unavailable_total",
			Help:      "Total number of turns rejected because the capture device was unavailable",
		}),
	}

	// Pre-create stage series so dashboards see zeros before the first turn.
	for _, stage := range pipeline.Stages {
		r.stageFailures.WithLabelValues(string(stage))
	}
	return r
}

// ObserveStage records one pipeline stage.
func (r *Recorder) ObserveStage(stage pipeline.Stage, elapsed time.Duration, err error) {
	r.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		r.stageFailures.WithLabelValues(string(stage)).Inc()
	}
}

// DeviceUnavailable counts a failed arm.
func (r *Recorder) DeviceUnavailable() {
	r.deviceUnavailable.Inc()
}

// TurnFinished counts a turn by outcome and records its wall time.
func (r *Recorder) TurnFinished(outcome string, elapsed time.Duration) {
	r.turns.WithLabelValues(outcome).Inc()
	r.turnDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on listener until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("metrics listening", "addr", listener.Addr().String())
	}
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}

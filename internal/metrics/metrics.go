// Package metrics exposes Prometheus instrumentation for recordings and transcriptions.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every askvoice collector on its own registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecordingsStarted     prometheus.Counter
	Outcomes              *prometheus.CounterVec
	RecordingDuration     prometheus.Histogram
	AudioBytes            prometheus.Histogram
	TranscriptionDuration *prometheus.HistogramVec
	ActiveRecordings      prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "askvoice_recordings_started_total",
			Help: "Total number of recordings that acquired the microphone",
		}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "askvoice_outcomes_total",
			Help: "Terminal recording outcomes by category",
		}, []string{"category"}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "askvoice_recording_duration_seconds",
			Help:    "Elapsed recording time when stop was requested",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~4 minutes
		}),
		AudioBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "askvoice_audio_bytes",
			Help:    "Size of finalized recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 14), // 1KB to ~8MB
		}),
		TranscriptionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "askvoice_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}, []string{"result"}),
		ActiveRecordings: factory.NewGauge(prometheus.GaugeOpts{
			Name: "askvoice_active_recordings",
			Help: "1 while the microphone is held, 0 otherwise",
		}),
	}
}

// Registry returns the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordStarted marks a recording that acquired the device.
func (m *Metrics) RecordStarted() {
	if m == nil {
		return
	}
	m.RecordingsStarted.Inc()
	m.ActiveRecordings.Set(1)
}

// RecordReleased marks the device as released.
func (m *Metrics) RecordReleased() {
	if m == nil {
		return
	}
	m.ActiveRecordings.Set(0)
}

// RecordStopped observes the elapsed time and captured size of a stopped recording.
func (m *Metrics) RecordStopped(elapsedSeconds int, bytes int) {
	if m == nil {
		return
	}
	m.RecordingDuration.Observe(float64(elapsedSeconds))
	m.AudioBytes.Observe(float64(bytes))
}

// RecordOutcome counts one terminal outcome.
func (m *Metrics) RecordOutcome(category string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(category).Inc()
}

// RecordTranscription observes one transcription call; result is "ok" or a failure reason.
func (m *Metrics) RecordTranscription(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TranscriptionDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. Empty addr disables the listener.
func Serve(ctx context.Context, addr string, m *Metrics, logger *slog.Logger) error {
	addr = strings.TrimSpace(addr)
	if addr == "" || m == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("metrics listener started", "addr", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

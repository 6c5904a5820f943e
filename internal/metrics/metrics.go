// Package metrics exposes turn loop counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TurnMetrics struct {
	registry *prometheus.Registry

	turnsTotal        *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	consecutiveErrors prometheus.Gauge
	ordersSaved       *prometheus.CounterVec
	wakeTotal         *prometheus.CounterVec
}

func NewTurnMetrics() *TurnMetrics {
	registry := prometheus.NewRegistry()

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waiter",
			Subsystem: "turn",
			Name:      "total",
			Help:      "Completed turns by intent and outcome.",
		},
		[]string{"intent", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "waiter",
			Subsystem: "turn",
			Name:      "stage_duration_seconds",
			Help:      "Duration of capture, transcription and classification.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"stage"},
	)
	consecutiveErrors := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "waiter",
			Subsystem: "turn",
			Name:      "consecutive_errors",
			Help:      "Errors since the last successful turn.",
		},
	)
	ordersSaved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waiter",
			Subsystem: "orders",
			Name:      "saved_total",
			Help:      "Order save attempts by status.",
		},
		[]string{"status"},
	)
	wakeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waiter",
			Subsystem: "wake",
			Name:      "detections_total",
			Help:      "Wake detections by model.",
		},
		[]string{"model"},
	)

	registry.MustRegister(turnsTotal, stageDuration, consecutiveErrors, ordersSaved, wakeTotal)

	return &TurnMetrics{
		registry:          registry,
		turnsTotal:        turnsTotal,
		stageDuration:     stageDuration,
		consecutiveErrors: consecutiveErrors,
		ordersSaved:       ordersSaved,
		wakeTotal:         wakeTotal,
	}
}

func (m *TurnMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *TurnMetrics) ObserveTurn(intent, outcome string) {
	m.turnsTotal.WithLabelValues(intent, outcome).Inc()
}

func (m *TurnMetrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *TurnMetrics) SetConsecutiveErrors(n int) {
	m.consecutiveErrors.Set(float64(n))
}

func (m *TurnMetrics) OrderSaved(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ordersSaved.WithLabelValues(status).Inc()
}

func (m *TurnMetrics) WakeDetected(model string) {
	m.wakeTotal.WithLabelValues(model).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package metrics exposes publish and delivery counters in Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "rabbit_tools"

// Metrics holds the collectors shared by the publisher and the subscriber.
type Metrics struct {
	published  *prometheus.CounterVec
	deliveries prometheus.Counter
	settled    *prometheus.CounterVec
	handlerErr prometheus.Counter
	inFlight   prometheus.Gauge
	confirmLat prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Published messages by confirmation status.",
		}, []string{"status"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Deliveries received from the broker.",
		}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_total",
			Help:      "Deliveries settled by action.",
		}, []string{"action"}),
		handlerErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Deliveries the handler failed to process.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight",
			Help:      "Deliveries currently being handled.",
		}),
		confirmLat: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirm_seconds",
			Help:      "Time from publish to resolved confirmation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{m.published, m.deliveries, m.settled, m.handlerErr, m.inFlight, m.confirmLat} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// IncPublished counts one resolved publish.
func (m *Metrics) IncPublished(status string) {
	if m == nil {
		return
	}

	m.published.WithLabelValues(status).Inc()
}

// ObserveConfirm records how long a confirmation took.
func (m *Metrics) ObserveConfirm(d time.Duration) {
	if m == nil {
		return
	}

	m.confirmLat.Observe(d.Seconds())
}

// IncDeliveries counts one received delivery.
func (m *Metrics) IncDeliveries() {
	if m == nil {
		return
	}

	m.deliveries.Inc()
}

// IncSettled counts one ack or reject.
func (m *Metrics) IncSettled(action string) {
	if m == nil {
		return
	}

	m.settled.WithLabelValues(action).Inc()
}

// IncHandlerErrors counts one failed handler call.
func (m *Metrics) IncHandlerErrors() {
	if m == nil {
		return
	}

	m.handlerErr.Inc()
}

// AddInFlight moves the in-flight gauge by delta.
func (m *Metrics) AddInFlight(delta float64) {
	if m == nil {
		return
	}

	m.inFlight.Add(delta)
}

// Server serves the registry on /metrics until ctx is done.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer builds a metrics server listening on addr.
func NewServer(addr string, reg *prometheus.Registry, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:          reg,
		EnableOpenMetrics: true,
	}))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start runs the HTTP server in the background and stops it once ctx is done.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.log.Info("starting metrics server", zap.String("address", s.srv.Addr))

		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}

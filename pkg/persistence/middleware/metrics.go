package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// SpaceMetrics holds the collectors shared by every space wrapped with the
// same registerer.
type SpaceMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewSpaceMetrics creates and registers the space collectors. Registering
// twice on the same registerer reuses the existing collectors.
func NewSpaceMetrics(reg prometheus.Registerer) *SpaceMetrics {
	m := &SpaceMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weft_space_operations_total",
				Help: "Tuple space operations by op and result.",
			},
			[]string{"op", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weft_space_operation_duration_seconds",
				Help:    "Latency of tuple space operations.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"op"},
		),
	}
	if reg != nil {
		m.Operations = register(reg, m.Operations)
		m.Duration = register(reg, m.Duration)
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Result classifies an operation error for the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEmpty):
		return "empty"
	case errors.Is(err, domain.ErrKindMismatch):
		return "kind_mismatch"
	case errors.Is(err, domain.ErrMalformedChannel):
		return "malformed"
	}
	return "error"
}

type metricsMiddleware struct {
	next    ports.TupleSpace
	metrics *SpaceMetrics
}

// NewMetrics counts operations and observes their latency.
func NewMetrics(reg prometheus.Registerer) Middleware {
	metrics := NewSpaceMetrics(reg)
	return func(next ports.TupleSpace) ports.TupleSpace {
		return &metricsMiddleware{next: next, metrics: metrics}
	}
}

func (m *metricsMiddleware) observe(op string, start time.Time, err error) {
	m.metrics.Operations.WithLabelValues(op, Result(err)).Inc()
	m.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsMiddleware) Tell(ctx context.Context, kind uint8, channel string, v domain.Value) error {
	start := time.Now()
	err := m.next.Tell(ctx, kind, channel, v)
	m.observe("tell", start, err)
	return err
}

func (m *metricsMiddleware) Ask(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	start := time.Now()
	v, err := m.next.Ask(ctx, kind, channel)
	m.observe("ask", start, err)
	return v, err
}

func (m *metricsMiddleware) Peek(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	start := time.Now()
	v, err := m.next.Peek(ctx, kind, channel)
	m.observe("peek", start, err)
	return v, err
}

func (m *metricsMiddleware) Channels(ctx context.Context, kind uint8, scope string) ([]domain.Name, error) {
	return channels(ctx, m.next, kind, scope)
}

func (m *metricsMiddleware) Reset(ctx context.Context) error {
	return m.next.Reset(ctx)
}

func (m *metricsMiddleware) Close() error {
	return m.next.Close()
}

package scheduler

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scheduler collectors.
type Metrics struct {
	Rounds        prometheus.Counter
	Processes     *prometheus.CounterVec
	RoundDuration prometheus.Histogram
	Ready         prometheus.Gauge
}

// NewMetrics creates the scheduler collectors and registers them on reg when
// it is not nil. Registering twice on the same registerer reuses the existing
// collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weft_scheduler_rounds_total",
			Help: "Scheduling rounds executed.",
		}),
		Processes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_scheduler_processes_total",
			Help: "Processes executed, by outcome.",
		}, []string{"outcome"}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weft_scheduler_round_duration_seconds",
			Help:    "Wall time of a scheduling round.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weft_scheduler_ready_processes",
			Help: "Processes drained as runnable in the last round.",
		}),
	}
	if reg != nil {
		m.Rounds = register(reg, m.Rounds)
		m.Processes = register(reg, m.Processes)
		m.RoundDuration = register(reg, m.RoundDuration)
		m.Ready = register(reg, m.Ready)
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

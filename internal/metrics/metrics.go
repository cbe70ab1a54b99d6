package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the collectors recorded by the payment pipeline.
type Metrics struct {
	Registry           *prometheus.Registry
	EventsTotal        prometheus.Counter
	OutcomesTotal      *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
}

// New builds the collectors on a fresh registry so tests never share state.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "payment_events_total",
				Help: "Total number of order_created events received",
			},
		),
		OutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_outcomes_total",
				Help: "Total number of handled events by outcome",
			},
			[]string{"outcome"},
		),
		SettlementDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bank_settlement_duration_seconds",
				Help:    "Duration of bank settlement calls",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	m.Registry.MustRegister(
		m.EventsTotal,
		m.OutcomesTotal,
		m.SettlementDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

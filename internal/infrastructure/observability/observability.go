// Package observability assembles the zap, OpenTelemetry and Prometheus adapters into the
// application's observability port.
package observability

import (
	"sync"

	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics *registeredMetrics
}

// registeredMetrics resolves metric keys to the instruments registered at startup.
// Looking up an unregistered key logs once and yields a no-op instrument.
type registeredMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
	log        observability.Logger
	warned     sync.Map // MetricKey -> struct{}
}

func (m *registeredMetrics) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	m.warnMissing(name, "counter")
	return observability.NopCounter()
}

func (m *registeredMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	m.warnMissing(name, "histogram")
	return observability.NopHistogram()
}

func (m *registeredMetrics) warnMissing(name observability.MetricKey, kind string) {
	if _, seen := m.warned.LoadOrStore(name, struct{}{}); seen {
		return
	}
	m.log.Warn("metric_not_registered",
		observability.F("metric", string(name)),
		observability.F("kind", kind),
	)
}

// New assembles an Observability provider from a tracer, a logger and the instruments
// returned by prometrics.Standard. Nil parts fall back to no-ops.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	m := &registeredMetrics{
		counters:   make(map[observability.MetricKey]observability.Counter, len(counters)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(histograms)),
		log:        logger.With(observability.F("component", "metrics")),
	}
	for k, v := range counters {
		if v != nil {
			m.counters[k] = v
		}
	}
	for k, v := range histograms {
		if v != nil {
			m.histograms[k] = v
		}
	}
	return &provider{tracer: tracer, logger: logger, metrics: m}
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }

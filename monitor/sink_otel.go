package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

const DEFAULT_METER_NAME = "acqlog"

// otelSink records every numeric field on a synchronous Float64Gauge named
// <measurement>.<field>, with the tags as attributes. Instruments are created
// on first use and cached.
type otelSink struct {
	meter  metric.Meter
	mu     sync.RWMutex
	gauges map[string]metric.Float64Gauge
}

// "otel:<meter-name>"
func (m *Monitor) newOtelSink(name string) (pipeline.Sink[Metric], error) {
	if name == "" {
		name = DEFAULT_METER_NAME
	}
	provider := m.provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	return &otelSink{
		meter:  provider.Meter(name),
		gauges: map[string]metric.Float64Gauge{},
	}, nil
}

func (s *otelSink) gauge(name string) (metric.Float64Gauge, error) {
	s.mu.RLock()
	g, exists := s.gauges[name]
	s.mu.RUnlock()
	if exists {
		return g, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, exists = s.gauges[name]; !exists {
		var err error
		g, err = s.meter.Float64Gauge(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create gauge %s: %w", name, err)
		}
		s.gauges[name] = g
	}
	return g, nil
}

func (s *otelSink) Process(batch []Metric, threshold severity.Level) error {
	ctx := context.Background()
	var errs []error
	for i := range batch {
		m := &batch[i]
		if !pipeline.Accepted(*m, threshold) {
			continue
		}
		attrs := make([]attribute.KeyValue, 0, len(m.Tags))
		for _, t := range m.Tags {
			attrs = append(attrs, attribute.String(t.Key, t.Value))
		}
		opt := metric.WithAttributes(attrs...)
		for _, f := range m.Fields {
			v, ok := f.Numeric()
			if !ok {
				continue
			}
			g, err := s.gauge(m.Measurement + "." + f.Key)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			g.Record(ctx, v, opt)
		}
	}
	return errors.Join(errs...)
}

// Close is a no-op, the meter provider is owned by the caller.
func (s *otelSink) Close() error { return nil }

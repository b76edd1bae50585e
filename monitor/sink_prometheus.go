package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

const (
	PROMETHEUS_PATH     = "/metrics"
	PROMETHEUS_SHUTDOWN = 2 * time.Second
)

// prometheusSink keeps the last value of every numeric field as a gauge
// named <measurement>_<field>, labelled by the metric's tag keys. A metric
// whose tag keys differ from the ones the gauge was created with is ignored.
type prometheusSink struct {
	registry *prometheus.Registry
	mu       sync.Mutex
	gauges   map[string]*prometheus.GaugeVec
	labels   map[string][]string
	server   *http.Server
	done     chan struct{}
}

// "prometheus:<listen-addr>", an empty address keeps the registry without
// serving it.
func (m *Monitor) newPrometheusSink(addr string) (pipeline.Sink[Metric], error) {
	s := newPrometheusRegistrySink()
	for _, c := range m.collectors {
		if err := s.registry.Register(c); err != nil {
			return nil, err
		}
	}
	if addr == "" {
		return s, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(PROMETHEUS_PATH, s.Handler())
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.report(severity.ERROR, "Prometheus", err)
		}
	}()
	return s, nil
}

func newPrometheusRegistrySink() *prometheusSink {
	return &prometheusSink{
		registry: prometheus.NewRegistry(),
		gauges:   map[string]*prometheus.GaugeVec{},
		labels:   map[string][]string{},
	}
}

// Registry returns the underlying registry for use with HTTP handlers.
func (s *prometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

func (s *prometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *prometheusSink) Process(batch []Metric, threshold severity.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i := range batch {
		if !pipeline.Accepted(batch[i], threshold) {
			continue
		}
		if err := s.collect(&batch[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// collect sets the gauges of one metric. Label values the client library
// rejects (invalid UTF-8) skip the metric with an error.
func (s *prometheusSink) collect(m *Metric) error {
	labels := prometheus.Labels{}
	var names []string
	for _, t := range m.Tags {
		k := strings.ReplaceAll(promName(t.Key), ":", "_")
		if _, dup := labels[k]; dup || k == "" {
			continue
		}
		labels[k] = t.Value
		names = append(names, k)
	}
	slices.Sort(names)
	for _, f := range m.Fields {
		v, ok := f.Numeric()
		if !ok {
			continue
		}
		name := promName(m.Measurement + "_" + f.Key)
		vec, ok := s.gauges[name]
		if !ok {
			vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: name,
				Help: m.Measurement + " field " + f.Key,
			}, names)
			if err := s.registry.Register(vec); err != nil {
				continue
			}
			s.gauges[name] = vec
			s.labels[name] = names
		} else if !slices.Equal(s.labels[name], names) {
			continue
		}
		g, err := vec.GetMetricWith(labels)
		if err != nil {
			return fmt.Errorf("metric %s: %w", m.Measurement, err)
		}
		g.Set(v)
	}
	return nil
}

func (s *prometheusSink) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), PROMETHEUS_SHUTDOWN)
	defer cancel()
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}

// promName maps a measurement/field/tag name onto [a-zA-Z_:][a-zA-Z0-9_:]*.
func promName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

package monitor

import (
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

// Tag is one key/value pair of a metric tag set. Tag order is kept as given.
type Tag struct {
	Key   string
	Value string
}

// Field is one named scalar of a metric. Value holds int64, float64, bool
// or string, use the Int/Float/Bool/String constructors.
type Field struct {
	Key   string
	Value any
}

func Int(key string, v int64) Field { return Field{Key: key, Value: v} }
func Float(key string, v float64) Field { return Field{Key: key, Value: v} }
func Bool(key string, v bool) Field { return Field{Key: key, Value: v} }
func String(key string, v string) Field { return Field{Key: key, Value: v} }

// Numeric returns the field as float64, false for strings.
func (f Field) Numeric() (float64, bool) {
	switch v := f.Value.(type) {
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Metric is the record of the metrics pipeline.
type Metric struct {
	Measurement string
	Tags        []Tag
	Fields      []Field
	Time        time.Time
	Severity    severity.Level // sink threshold filter, INFO by default
	Urgent      bool           // wake the worker instead of waiting for the timeout
}

// Level makes Metric filterable by the sink registry.
func (m Metric) Level() severity.Level { return m.Severity }

// Tag returns the value of the first tag named key.
func (m *Metric) Tag(key string) (string, bool) {
	for _, t := range m.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// EventLog receives the monitor's own diagnostics. A logging client bound to
// the "cid=__Monitor" key satisfies it.
type EventLog interface {
	Logf(sev severity.Level, id, format string, args ...any) error
}

// Options configure New. The zero value is usable.
type Options struct {
	Fallback      io.Writer              // receives internal errors when Events is nil, os.Stderr when nil
	Events        EventLog               // own diagnostics, see SetEventLog
	Capacity      int                    // initial queue capacity
	Timeout       time.Duration          // worker wait timeout, pipeline.LOOP_TIMEOUT when zero
	Guard         func(name string)      // deferred in the worker goroutine (crash handler)
	Now           func() time.Time       // capture clock, time.Now when nil
	Collectors    []prometheus.Collector // extra collectors exposed by prometheus: sinks
	MeterProvider metric.MeterProvider   // used by otel: sinks, the global provider when nil
}

// Monitor is the process-wide metrics pipeline.
type Monitor struct {
	sync struct {
		fbckMtx  sync.RWMutex // guards fallbck and events
		stopOnce sync.Once
	}
	worker     *pipeline.Worker[Metric]
	sinks      *pipeline.Registry[Metric]
	fallbck    io.Writer
	events     EventLog
	now        func() time.Time
	collectors []prometheus.Collector
	provider   metric.MeterProvider
}

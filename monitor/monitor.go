// Package monitor is the metrics half of the telemetry backbone. It mirrors
// the logging pipeline: producers queue Metric records without blocking on
// I/O, one worker goroutine dispatches them in batches to named sinks.
package monitor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

const (
	WORKER_NAME  = "acqlog:monitor"
	MONITOR_KEYS = "cid=__Monitor" // primary keys of the monitor's own log client
)

// Scheme names accepted by Monitor.OpenSink.
const (
	SCHEME_FILE       = "file"
	SCHEME_PROMETHEUS = "prometheus"
	SCHEME_OTEL       = "otel"
	SCHEME_REDIS      = "redis"
)

const (
	_ERROR_MESSAGE_MONITOR_EXISTS   = "monitor is allready instantiated"
	_ERROR_MESSAGE_MONITOR_INACTIVE = "monitor is not active"
)

var (
	ErrAlreadyInstantiated = errors.New(_ERROR_MESSAGE_MONITOR_EXISTS)
	ErrInactive            = errors.New(_ERROR_MESSAGE_MONITOR_INACTIVE)
)

var current atomic.Pointer[Monitor]

// New constructs the process-wide Monitor and starts its worker goroutine.
// Only one Monitor may exist at a time.
func New(opts Options) (*Monitor, error) {
	if current.Load() != nil {
		return nil, ErrAlreadyInstantiated
	}
	m := &Monitor{
		sinks:      pipeline.NewRegistry[Metric](),
		now:        opts.Now,
		collectors: opts.Collectors,
		provider:   opts.MeterProvider,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if opts.Fallback == nil {
		opts.Fallback = os.Stderr
	}
	m.SetFallback(opts.Fallback)
	m.SetEventLog(opts.Events)
	m.registerSchemes()
	m.worker = pipeline.StartWorker(pipeline.WorkerOptions[Metric]{
		Name:     WORKER_NAME,
		Capacity: opts.Capacity,
		Timeout:  opts.Timeout,
		Urgent:   func(r Metric) bool { return r.Urgent },
		Dispatch: m.procced,
		Guard:    opts.Guard,
	})
	if !current.CompareAndSwap(nil, m) {
		m.worker.Stop()
		return nil, ErrAlreadyInstantiated
	}
	return m, nil
}

// Active returns the live Monitor, nil before New and after Stop.
func Active() *Monitor {
	return current.Load()
}

// Stop drains the queue into the sinks, closes them and releases the
// process-wide slot. The slot is released first so late producers such as
// the logger forwarding sink see no monitor instead of a stopping one.
func (m *Monitor) Stop() {
	m.sync.stopOnce.Do(func() {
		current.CompareAndSwap(m, nil)
		m.worker.Stop()
		if err := m.sinks.CloseAll(); err != nil {
			m.report(severity.ERROR, "Close", err)
		}
	})
}

func (m *Monitor) IsActive() bool {
	return m.worker.State() == pipeline.STATE_RUNNING
}

func (m *Monitor) SetFallback(f io.Writer) *Monitor {
	m.sync.fbckMtx.Lock()
	defer m.sync.fbckMtx.Unlock()
	if f != nil {
		m.fallbck = f
	} else {
		m.fallbck = io.Discard
	}
	return m
}

// SetEventLog routes the monitor's own diagnostics to a logging client.
// The logger is started before the monitor, so it is attached afterwards.
func (m *Monitor) SetEventLog(e EventLog) *Monitor {
	m.sync.fbckMtx.Lock()
	defer m.sync.fbckMtx.Unlock()
	m.events = e
	return m
}

func (m *Monitor) Name() string { return m.worker.Name() }
func (m *Monitor) Stats() pipeline.Stats { return m.worker.Stats() }

// Queue adds a metric. A zero Time is replaced by the capture time.
func (m *Monitor) Queue(metric Metric) error {
	if metric.Time.IsZero() {
		metric.Time = m.now()
	}
	if err := m.worker.Enqueue(metric); err != nil {
		return fmt.Errorf("%w: %w", ErrInactive, err)
	}
	return nil
}

// QueueMetric adds a metric captured now at INFO severity.
func (m *Monitor) QueueMetric(measurement string, tags []Tag, fields []Field) error {
	return m.QueueMetricAt(measurement, tags, fields, m.now())
}

// QueueMetricAt adds a metric with an explicit timestamp.
func (m *Monitor) QueueMetricAt(measurement string, tags []Tag, fields []Field, t time.Time) error {
	return m.Queue(Metric{
		Measurement: measurement,
		Tags:        tags,
		Fields:      fields,
		Time:        t,
		Severity:    severity.INFO,
	})
}

/////////////////////////////////////////////////////////////////////////////////////////
// Sink management, same contract as the logger's.

func (m *Monitor) OpenSink(name string, level severity.Level) error {
	return m.sinks.Open(name, level)
}

func (m *Monitor) CloseSink(name string) error {
	return m.sinks.Close(name)
}

func (m *Monitor) SinkList() []string {
	return m.sinks.List()
}

func (m *Monitor) SinkLevel(name string) (severity.Level, error) {
	return m.sinks.Level(name)
}

func (m *Monitor) SetSinkLevel(name string, level severity.Level) error {
	return m.sinks.SetLevel(name, level)
}

func (m *Monitor) registerSchemes() {
	m.sinks.Register(SCHEME_FILE, newFileSink)
	m.sinks.Register(SCHEME_PROMETHEUS, m.newPrometheusSink)
	m.sinks.Register(SCHEME_OTEL, m.newOtelSink)
	m.sinks.Register(SCHEME_REDIS, newRedisSink)
}

func (m *Monitor) procced(batch []Metric) {
	if err := m.sinks.Dispatch(batch); err != nil {
		m.report(severity.ERROR, "Dispatch", err)
	}
}

// report sends a diagnostic to the event log, falling back to the fallback
// writer. Warnings and above carry cid=__Monitor, so the logger never
// forwards them back into this pipeline.
func (m *Monitor) report(sev severity.Level, id string, err error) {
	m.sync.fbckMtx.RLock()
	defer m.sync.fbckMtx.RUnlock()
	if m.events != nil {
		if m.events.Logf(sev, id, "%s", err.Error()) == nil {
			return
		}
	}
	if m.fallbck != nil {
		m.fallbck.Write([]byte("monitor " + id + ": " + err.Error() + "\n"))
	}
}

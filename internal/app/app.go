// Package app is the composition root. It starts the logging pipeline, the
// crash handler and the metrics pipeline in a fixed order and stops them in
// reverse, keeping the process-wide handle for code without one of its own.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abyssdigger/acqlog"
	"github.com/abyssdigger/acqlog/crash"
	"github.com/abyssdigger/acqlog/internal/config"
	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/monitor"
	"github.com/abyssdigger/acqlog/severity"
)

const (
	MAIN_THREAD = "acqlog:main"
	APP_KEYS    = "cid=__Application"
)

const _ERROR_MESSAGE_APP_EXISTS = "application is allready started"

var ErrAlreadyStarted = errors.New(_ERROR_MESSAGE_APP_EXISTS)

var current atomic.Pointer[App]

// Options complete the configuration with process details.
type Options struct {
	Args   []string         // command line, logged at startup
	Stderr io.Writer        // fallback writer of both pipelines, os.Stderr when nil
	Abort  func()           // crash handler abort, crash.DefaultAbort when nil
	Now    func() time.Time // clock of both pipelines, time.Now when nil
}

// App owns the running pipelines.
type App struct {
	sync struct {
		stopOnce sync.Once
	}
	cfg       *config.Config
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *acqlog.Logger
	monitor   *monitor.Monitor
	crash     *crash.Handler
	client    *acqlog.Client
	collector *pipeline.Collector
	logSinks  []string
}

// Start brings the process up: termination signals are routed to the
// returned context, then the logger and its sinks start, the startup notes
// are written, the crash handler is installed and finally the monitor and
// its sinks start and the logger gets its monitor: sink. Any failure stops
// what was already started.
func Start(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if current.Load() != nil {
		return nil, ErrAlreadyStarted
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	a := &App{cfg: cfg}
	a.ctx, a.cancel = crash.BlockTermination(ctx)

	a.crash = crash.NewHandler(cfg.ProgName, nil)
	a.crash.Dir = cfg.Crash.Dir
	a.crash.Stderr = opts.Stderr
	a.crash.Abort = opts.Abort
	var guard func(string)
	if !cfg.Crash.Disabled {
		guard = a.crash.Guard
	}

	var err error
	a.logger, err = acqlog.New(acqlog.Options{
		ProgName: cfg.ProgName,
		HostName: cfg.HostName,
		Fallback: opts.Stderr,
		Capacity: cfg.Logger.Capacity,
		Timeout:  cfg.Logger.Timeout,
		Guard:    guard,
		Now:      opts.Now,
	})
	if err != nil {
		a.cancel()
		return nil, fmt.Errorf("start logger: %w", err)
	}
	a.crash.Logger = a.logger
	a.client = a.logger.NewClient(MAIN_THREAD, APP_KEYS, severity.INFO)

	for _, s := range cfg.LoggerSinks(a.logger.HostName(), now()) {
		if err := a.logger.OpenSink(s.Name, s.Threshold()); err != nil {
			a.abandon()
			return nil, fmt.Errorf("open log sink: %w", err)
		}
	}
	a.logSinks = a.logger.SinkList()

	a.client.Always(severity.NOTE, "Init", "%s started: pid=%d host=%s run=%s",
		cfg.ProgName, os.Getpid(), a.logger.HostName(), a.crash.RunID)
	if len(opts.Args) > 0 {
		a.client.Always(severity.NOTE, "Init", "command line: %s", strings.Join(opts.Args, " "))
	}
	a.client.Always(severity.NOTE, "Init", "log sinks: %s", strings.Join(a.logSinks, " "))

	if !cfg.Crash.Disabled {
		a.crash.Install()
	}

	a.collector = pipeline.NewCollector(a.logger)
	a.monitor, err = monitor.New(monitor.Options{
		Fallback:   opts.Stderr,
		Events:     a.logger.NewClient(monitor.WORKER_NAME, monitor.MONITOR_KEYS, severity.TRACE),
		Capacity:   cfg.Monitor.Capacity,
		Timeout:    cfg.Monitor.Timeout,
		Guard:      guard,
		Now:        opts.Now,
		Collectors: []prometheus.Collector{a.collector},
	})
	if err != nil {
		a.client.Always(severity.FATAL, "Init-monitor", "start monitor: %v", err)
		a.abandon()
		return nil, fmt.Errorf("start monitor: %w", err)
	}
	a.collector.Add(a.monitor)

	for _, s := range cfg.Monitor.Sinks {
		if err := a.monitor.OpenSink(s.Name, s.Threshold()); err != nil {
			a.client.Always(severity.FATAL, "Init-badmoni", "monitor sink failed: %v", err)
			a.abandon()
			return nil, fmt.Errorf("open monitor sink: %w", err)
		}
	}
	if len(cfg.Monitor.Sinks) > 0 {
		forward := severity.ParseOrInvalid(cfg.Monitor.ForwardLevel)
		if err := a.logger.OpenSink(acqlog.SCHEME_MONITOR+":", forward); err != nil {
			a.abandon()
			return nil, fmt.Errorf("open monitor forwarding: %w", err)
		}
	}

	if !current.CompareAndSwap(nil, a) {
		a.abandon()
		return nil, ErrAlreadyStarted
	}
	return a, nil
}

// abandon stops whatever a failed Start already brought up.
func (a *App) abandon() {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	a.crash.Uninstall()
	a.logger.Stop()
	a.cancel()
}

// Current returns the running App, nil outside Start..Shutdown.
func Current() *App {
	return current.Load()
}

// Shutdown writes the final note and stops the monitor strictly before the
// logger, so messages about the monitor shutdown still reach the log sinks.
// Records forwarded after that point are dropped by the monitor: sink.
// Safe to call more than once.
func (a *App) Shutdown() {
	a.sync.stopOnce.Do(func() {
		a.client.Always(severity.NOTE, "Done", "%s finished", a.cfg.ProgName)
		current.CompareAndSwap(a, nil)
		a.monitor.Stop()
		a.client.Always(severity.INFO, "Done", "monitor stopped")
		a.crash.Uninstall()
		a.logger.Stop()
		a.cancel()
	})
}

// Wait blocks until a termination signal arrives or ctx is cancelled.
func (a *App) Wait() {
	<-a.ctx.Done()
}

// Context is cancelled by SIGINT, SIGTERM, SIGHUP and by Shutdown.
func (a *App) Context() context.Context { return a.ctx }

func (a *App) Logger() *acqlog.Logger { return a.logger }
func (a *App) Monitor() *monitor.Monitor { return a.monitor }
func (a *App) Crash() *crash.Handler { return a.crash }
func (a *App) Config() *config.Config { return a.cfg }

// NewClient creates a logging client for a subsystem.
func (a *App) NewClient(thread, keys string, level severity.Level) *acqlog.Client {
	return a.logger.NewClient(thread, keys, level)
}

// Go starts fn as a named goroutine under the crash handler.
func (a *App) Go(thread string, fn func()) {
	if a.cfg.Crash.Disabled {
		go fn()
		return
	}
	a.crash.Go(thread, fn)
}

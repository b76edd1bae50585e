package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/abyssdigger/acqlog/internal/app"
	"github.com/abyssdigger/acqlog/internal/config"
	"github.com/abyssdigger/acqlog/monitor"
	"github.com/abyssdigger/acqlog/severity"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:], os.Stdout)
	case "levels":
		printLevels(os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		printUsage(os.Stderr)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("acqlogd %s: %v", cmd, err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: acqlogd <command> [OPTION]...
  commands:
    run         start the pipelines and generate demo traffic until SIGINT/SIGTERM
    validate    check a configuration file
    levels      list the severity levels
  run options:
    -config PATH      configuration file (defaults when empty)
    -nosyslog         no syslog: sink, console sink at Warning instead
    -logfile          open a Trace sink file:<prog>_<time>_<host>.log
    -monitor SNAME    open a monitor sink SNAME and forward Note and above to it
    -clients N        demo producer goroutines
`)
}

// loadConfig reads path, or returns the defaults for an empty path.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file")
	noSyslog := fs.Bool("nosyslog", false, "Console sink instead of syslog")
	logfile := fs.Bool("logfile", false, "Open the per-run log file")
	moniSink := fs.String("monitor", "", "Monitor sink name")
	clients := fs.Int("clients", -1, "Demo producer goroutines, config value when negative")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	cfg.Logger.NoSyslog = cfg.Logger.NoSyslog || *noSyslog
	cfg.Logger.Logfile = cfg.Logger.Logfile || *logfile
	if *moniSink != "" {
		cfg.Monitor.Sinks = append(cfg.Monitor.Sinks, config.SinkConfig{Name: *moniSink, Level: severity.TRACE.String()})
	}
	if *clients >= 0 {
		cfg.Demo.Clients = *clients
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := app.Start(context.Background(), cfg, app.Options{Args: os.Args})
	if err != nil {
		return err
	}
	defer a.Shutdown()

	for i := range cfg.Demo.Clients {
		thread := "demo:" + strconv.Itoa(i)
		a.Go(thread, func() { demoProducer(a, thread, cfg.Demo.Interval) })
	}
	a.Wait()
	return nil
}

// demoProducer cycles through all severities on one client and reports its
// progress as a metric, until the application context ends.
func demoProducer(a *app.App, thread string, interval time.Duration) {
	c := a.NewClient(thread, "cid=__Demo", severity.DEBUG)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	levels := severity.All()
	for n := 0; ; n++ {
		select {
		case <-a.Context().Done():
			return
		case <-ticker.C:
		}
		sev := levels[n%len(levels)]
		if err := c.Logf(sev, "D-"+strconv.Itoa(n), "demo record #%d", n+1); err != nil {
			return
		}
		a.Monitor().QueueMetric("demo", []monitor.Tag{{Key: "thread", Value: thread}}, []monitor.Field{
			monitor.Int("records", int64(n+1)),
			monitor.Int("severity", int64(sev)),
		})
	}
}

func validateCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cfgPath == "" {
		return fmt.Errorf("-config is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "config %s looks good\n", *cfgPath)
	host := cfg.HostName
	if host == "" {
		host, _ = os.Hostname()
	}
	for _, s := range cfg.LoggerSinks(host, time.Now()) {
		fmt.Fprintf(out, "  log sink     %-8s %s\n", s.Level, s.Name)
	}
	for _, s := range cfg.Monitor.Sinks {
		fmt.Fprintf(out, "  monitor sink %-8s %s\n", s.Level, s.Name)
	}
	return nil
}

func printLevels(w io.Writer) {
	for _, l := range severity.All() {
		urgent := ""
		if l.Urgent() {
			urgent = "urgent"
		}
		fmt.Fprintf(w, "%d %-8s %s\n", l, l, urgent)
	}
}

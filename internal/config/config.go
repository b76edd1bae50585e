// Package config loads the YAML configuration of an acqlog based program.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abyssdigger/acqlog"
	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

const (
	DefaultProgName      = "acqlog"
	DefaultSyslogLevel   = "Note"
	DefaultConsoleSink   = "file:cout"
	DefaultConsoleLevel  = "Warning"
	DefaultForwardLevel  = "Note"
	DefaultLogfileLevel  = "Trace"
	DefaultDemoInterval  = time.Second
	DefaultSinkLevelText = "Info"
)

// Config is the whole process configuration.
type Config struct {
	ProgName string        `yaml:"prog_name"`
	HostName string        `yaml:"host_name"`
	Logger   LoggerConfig  `yaml:"logger"`
	Monitor  MonitorConfig `yaml:"monitor"`
	Crash    CrashConfig   `yaml:"crash"`
	Demo     DemoConfig    `yaml:"demo"`
}

// SinkConfig names one sink and its threshold.
type SinkConfig struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
}

// LoggerConfig configures the logging pipeline.
type LoggerConfig struct {
	Capacity    int           `yaml:"capacity"`
	Timeout     time.Duration `yaml:"timeout"`
	NoSyslog    bool          `yaml:"no_syslog"` // console sink at Warning instead of syslog
	SyslogLevel string        `yaml:"syslog_level"`
	Logfile     bool          `yaml:"logfile"` // <prog>_<time>_<host>.log at Trace
	LogfileDir  string        `yaml:"logfile_dir"`
	Sinks       []SinkConfig  `yaml:"sinks"`
}

// MonitorConfig configures the metrics pipeline. ForwardLevel is the
// threshold of the logger's monitor: sink, opened only when Sinks is not empty.
type MonitorConfig struct {
	Capacity     int           `yaml:"capacity"`
	Timeout      time.Duration `yaml:"timeout"`
	ForwardLevel string        `yaml:"forward_level"`
	Sinks        []SinkConfig  `yaml:"sinks"`
}

// CrashConfig configures the crash handler.
type CrashConfig struct {
	Disabled bool   `yaml:"disabled"`
	Dir      string `yaml:"dir"`
}

// DemoConfig drives the synthetic traffic of "acqlogd run".
type DemoConfig struct {
	Clients  int           `yaml:"clients"`
	Interval time.Duration `yaml:"interval"`
}

// ValidationError aggregates multiple configuration validation failures.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	var other *ValidationError
	return errors.As(target, &other)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads, parses, and validates a configuration from disk.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a configuration. Unknown keys are errors.
func Decode(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ProgName) == "" {
		c.ProgName = DefaultProgName
	}
	if c.Logger.Timeout == 0 {
		c.Logger.Timeout = pipeline.LOOP_TIMEOUT
	}
	if c.Logger.SyslogLevel == "" {
		c.Logger.SyslogLevel = DefaultSyslogLevel
	}
	if c.Monitor.Timeout == 0 {
		c.Monitor.Timeout = pipeline.LOOP_TIMEOUT
	}
	if c.Monitor.ForwardLevel == "" {
		c.Monitor.ForwardLevel = DefaultForwardLevel
	}
	if c.Demo.Interval == 0 {
		c.Demo.Interval = DefaultDemoInterval
	}
	for i := range c.Logger.Sinks {
		c.Logger.Sinks[i].applyDefaults()
	}
	for i := range c.Monitor.Sinks {
		c.Monitor.Sinks[i].applyDefaults()
	}
}

func (s *SinkConfig) applyDefaults() {
	if s.Level == "" {
		s.Level = DefaultSinkLevelText
	}
}

// Validate checks for semantic correctness in the configuration.
func (c *Config) Validate() error {
	problems := make([]string, 0)

	if strings.ContainsAny(c.ProgName, "/ ") {
		problems = append(problems, "prog_name must not contain '/' or spaces")
	}
	if c.Logger.Capacity < 0 {
		problems = append(problems, "logger.capacity must be non-negative")
	}
	if c.Logger.Timeout < 0 {
		problems = append(problems, "logger.timeout must be non-negative")
	}
	if _, err := severity.Parse(c.Logger.SyslogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("logger.syslog_level: %v", err))
	}
	problems = append(problems, validateSinks("logger", c.Logger.Sinks)...)

	if c.Monitor.Capacity < 0 {
		problems = append(problems, "monitor.capacity must be non-negative")
	}
	if c.Monitor.Timeout < 0 {
		problems = append(problems, "monitor.timeout must be non-negative")
	}
	if _, err := severity.Parse(c.Monitor.ForwardLevel); err != nil {
		problems = append(problems, fmt.Sprintf("monitor.forward_level: %v", err))
	}
	problems = append(problems, validateSinks("monitor", c.Monitor.Sinks)...)

	if c.Demo.Clients < 0 {
		problems = append(problems, "demo.clients must be non-negative")
	}
	if c.Demo.Interval < 0 {
		problems = append(problems, "demo.interval must be non-negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validateSinks(section string, sinks []SinkConfig) []string {
	problems := make([]string, 0)
	seen := map[string]bool{}
	for i, s := range sinks {
		if _, _, err := pipeline.SplitName(s.Name); err != nil {
			problems = append(problems, fmt.Sprintf("%s.sinks[%d]: %v", section, i, err))
		}
		if seen[s.Name] {
			problems = append(problems, fmt.Sprintf("%s.sinks[%d]: duplicate sink %q", section, i, s.Name))
		}
		seen[s.Name] = true
		if _, err := severity.Parse(s.Level); err != nil {
			problems = append(problems, fmt.Sprintf("%s.sinks[%d].level: %v", section, i, err))
		}
	}
	return problems
}

// Threshold returns the parsed level. Call it on validated configs only.
func (s SinkConfig) Threshold() severity.Level {
	return severity.ParseOrInvalid(s.Level)
}

// LoggerSinks returns every sink the logger opens at startup: the syslog or
// console sink, the configured ones and the optional per-run logfile.
func (c *Config) LoggerSinks(host string, start time.Time) []SinkConfig {
	sinks := make([]SinkConfig, 0, len(c.Logger.Sinks)+2)
	if c.Logger.NoSyslog {
		sinks = append(sinks, SinkConfig{Name: DefaultConsoleSink, Level: DefaultConsoleLevel})
	} else {
		sinks = append(sinks, SinkConfig{Name: acqlog.SCHEME_SYSLOG + ":", Level: c.Logger.SyslogLevel})
	}
	sinks = append(sinks, c.Logger.Sinks...)
	if c.Logger.Logfile {
		name := LogfileName(c.ProgName, start, host)
		if c.Logger.LogfileDir != "" {
			name = filepath.Join(c.Logger.LogfileDir, name)
		}
		sinks = append(sinks, SinkConfig{Name: acqlog.SCHEME_FILE + ":" + name, Level: DefaultLogfileLevel})
	}
	return sinks
}

// LogfileName builds "<prog>_<YYYY-MM-DD_HH_MM_SS>_<host>.log".
func LogfileName(prog string, t time.Time, host string) string {
	return prog + "_" + t.Format(acqlog.FILE_TIME_LAYOUT) + "_" + host + ".log"
}

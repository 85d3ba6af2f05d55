// Package config holds the TOML-backed application configuration: analysis
// tuning, runner concurrency, the optional metrics server and logging.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Analysis engine settings
	Analysis AnalysisConfig `toml:"analysis"`

	// Multi-trace runner settings
	Runner RunnerConfig `toml:"runner"`

	// Optional metrics server settings
	Server ServerConfig `toml:"server"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// AnalysisConfig tunes the idle-time analysis heuristics.
type AnalysisConfig struct {
	// Queue-depth rise above a drain window's starting depth required for
	// the window to count as a drain pattern (default: 3).
	DrainThreshold int32 `toml:"drain_threshold"`

	// Number of ranked optimization candidates to report (default: 3).
	TopEvents int `toml:"top_events"`

	// Device event names treated as kernel launch requests
	// (default: ["cudaLaunchKernel"]).
	LaunchNames []string `toml:"launch_names"`

	// Lowercase substrings excluding a device-side event from being a
	// kernel execution (default: ["mem"]).
	KernelExcludes []string `toml:"kernel_excludes"`

	// Regular expression matching host event names that carry a source
	// reference; used for the best-effort source location lookup in reports
	// (default: matches Python file references).
	SourcePattern string `toml:"source_pattern"`
}

// RunnerConfig contains multi-trace runner settings.
type RunnerConfig struct {
	// Maximum number of traces analyzed concurrently (default: 4).
	Concurrency int `toml:"concurrency"`
}

// ServerConfig contains the optional Prometheus metrics endpoint settings.
type ServerConfig struct {
	// Serve summary metrics after analysis completes (default: false).
	Enabled bool `toml:"enabled"`

	// Listen address (default: "localhost:9190")
	ListenAddress string `toml:"listen_address"`

	// Metrics endpoint path (default: "/metrics")
	MetricsPath string `toml:"metrics_path"`
}

// LoggingConfig contains the complete logging configuration.
type LoggingConfig struct {
	// Default logger settings applied to all module loggers
	Defaults LogDefaults `toml:"defaults"`

	// Output configurations - can have multiple outputs
	Outputs []LogOutput `toml:"outputs"`
}

// LogDefaults contains default logger settings.
type LogDefaults struct {
	// Log level (default: "info")
	Level string `toml:"level"`

	// Include caller information (default: 0)
	Caller int `toml:"caller"`

	// Time field name (default: "time")
	TimeField string `toml:"time_field"`

	// Time format (default: "" = RFC3339 with milliseconds)
	TimeFormat string `toml:"time_format"`

	// Time zone (default: "Local")
	TimeLocation string `toml:"time_location"`
}

// LogOutput represents a single output configuration.
type LogOutput struct {
	// Output type: "console", "file", "syslog"
	Type string `toml:"type"`

	// Enable this output (default: true)
	Enabled bool `toml:"enabled"`

	// Configuration specific to the output type
	Console *ConsoleConfig `toml:"console,omitempty"`
	File    *FileConfig    `toml:"file,omitempty"`
	Syslog  *SyslogConfig  `toml:"syslog,omitempty"`
}

// ConsoleConfig contains console/terminal output settings.
type ConsoleConfig struct {
	// Use fast JSON output (default: false)
	FastIO bool `toml:"fast_io"`

	// Output format when fast_io=false (default: "auto")
	Format string `toml:"format"`

	// Enable colored output (default: true)
	ColorOutput bool `toml:"color_output"`

	// Quote string values (default: true)
	QuoteString bool `toml:"quote_string"`

	// Output destination (default: "stderr")
	Writer string `toml:"writer"`

	// Use asynchronous writing (default: false)
	Async bool `toml:"async"`
}

// FileConfig contains file output settings.
type FileConfig struct {
	// Log file path (required)
	Filename string `toml:"filename"`

	// Maximum file size in megabytes (default: 10)
	MaxSize int64 `toml:"max_size"`

	// Maximum number of old log files to keep (default: 7)
	MaxBackups int `toml:"max_backups"`

	// Time format for rotated filenames (default: "2006-01-02T15-04-05")
	TimeFormat string `toml:"time_format"`

	// Use local time for rotation timestamps (default: true)
	LocalTime bool `toml:"local_time"`

	// Include hostname in filename (default: false)
	HostName bool `toml:"host_name"`

	// Include process ID in filename (default: false)
	ProcessID bool `toml:"process_id"`

	// Create directory if it doesn't exist (default: true)
	EnsureFolder bool `toml:"ensure_folder"`

	// Use asynchronous writing (default: true)
	Async bool `toml:"async"`
}

// SyslogConfig contains syslog output settings.
type SyslogConfig struct {
	// Network protocol (default: "udp")
	Network string `toml:"network"`

	// Syslog server address (default: "localhost:514")
	Address string `toml:"address"`

	// Hostname for syslog messages (default: system hostname)
	Hostname string `toml:"hostname"`

	// Syslog tag/program name (default: "traceidle")
	Tag string `toml:"tag"`

	// Message prefix marker (default: "@cee:")
	Marker string `toml:"marker"`

	// Use asynchronous writing (default: true)
	Async bool `toml:"async"`
}

// DefaultSourcePattern matches host event names that reference a Python
// source location, the form the PyTorch profiler emits.
const DefaultSourcePattern = `\.py\(.*\)`

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Analysis: AnalysisConfig{
			DrainThreshold: 3,
			TopEvents:      3,
			LaunchNames:    []string{"cudaLaunchKernel"},
			KernelExcludes: []string{"mem"},
			SourcePattern:  DefaultSourcePattern,
		},
		Runner: RunnerConfig{
			Concurrency: 4,
		},
		Server: ServerConfig{
			Enabled:       false,
			ListenAddress: "localhost:9190",
			MetricsPath:   "/metrics",
		},
		Logging: LoggingConfig{
			Defaults: LogDefaults{
				Level:        "info",
				Caller:       0,
				TimeField:    "time",
				TimeFormat:   "",
				TimeLocation: "Local",
			},
			Outputs: []LogOutput{
				{
					Type:    "console",
					Enabled: true,
					Console: &ConsoleConfig{
						FastIO:      false,
						Format:      "auto",
						ColorOutput: true,
						QuoteString: true,
						Writer:      "stderr",
						Async:       false,
					},
				},
				{
					Type:    "file",
					Enabled: false,
					File: &FileConfig{
						Filename:     "logs/traceidle.log",
						MaxSize:      10,
						MaxBackups:   7,
						TimeFormat:   "2006-01-02T15-04-05",
						LocalTime:    true,
						EnsureFolder: true,
						Async:        true,
					},
				},
			},
		},
	}
}

// LoadConfig loads configuration from a TOML file, applied on top of the
// defaults. An empty path returns the defaults unchanged.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("config file not found: %s", configPath)
	}

	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return config, nil
}

// Validate checks the configuration for values the application cannot run
// with.
func (c *AppConfig) Validate() error {
	if c.Analysis.DrainThreshold <= 0 {
		return fmt.Errorf("analysis.drain_threshold must be positive, got %d", c.Analysis.DrainThreshold)
	}
	if c.Analysis.TopEvents < 0 {
		return fmt.Errorf("analysis.top_events cannot be negative, got %d", c.Analysis.TopEvents)
	}
	if len(c.Analysis.LaunchNames) == 0 {
		return fmt.Errorf("analysis.launch_names cannot be empty")
	}
	if c.Analysis.SourcePattern != "" {
		if _, err := regexp.Compile(c.Analysis.SourcePattern); err != nil {
			return fmt.Errorf("analysis.source_pattern is not a valid regexp: %w", err)
		}
	}

	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be positive, got %d", c.Runner.Concurrency)
	}

	if c.Server.Enabled {
		if c.Server.ListenAddress == "" {
			return fmt.Errorf("server.listen_address cannot be empty")
		}
		if c.Server.MetricsPath == "" {
			return fmt.Errorf("server.metrics_path cannot be empty")
		}
	}

	hasEnabledOutput := false
	for _, output := range c.Logging.Outputs {
		if output.Enabled {
			hasEnabledOutput = true
			break
		}
	}
	if !hasEnabledOutput {
		return fmt.Errorf("at least one logging output must be enabled")
	}

	return nil
}

// Package logger configures the application's phuslu/log loggers from the
// [logging] configuration section and hands out per-module loggers.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phuslu/log"

	"traceidle/internal/config"
)

var (
	// sharedWriter is the multi-writer all module loggers share. Before
	// Setup runs it falls back to stderr so early log lines are not lost.
	sharedWriter log.Writer = &log.IOWriter{Writer: os.Stderr}

	// defaults captured at Setup time, applied to module loggers.
	defaults config.LogDefaults = config.DefaultConfig().Logging.Defaults
)

// parseLogLevel converts a string log level to log.Level.
func parseLogLevel(levelStr string) log.Level {
	switch levelStr {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// parseTimeLocation parses a time location string.
func parseTimeLocation(location string) *time.Location {
	switch location {
	case "Local":
		return time.Local
	case "UTC":
		return time.UTC
	default:
		if loc, err := time.LoadLocation(location); err == nil {
			return loc
		}
		return time.Local
	}
}

// mapTimeFormat maps a config time format to log.TimeFormat.
func mapTimeFormat(format string) string {
	switch format {
	case "Unix":
		return log.TimeFormatUnix
	case "UnixMs":
		return log.TimeFormatUnixMs
	default:
		return format
	}
}

// GlogFormatter implements a glog-style text format.
type GlogFormatter struct{}

// Formatter builds the log entry in glog format using a buffer instead of
// fmt.Fprintf.
func (f GlogFormatter) Formatter(w io.Writer, a *log.FormatterArgs) (int, error) {
	var buf bytes.Buffer

	// Level (e.g., 'I' for info)
	if len(a.Level) > 0 {
		buf.WriteByte(a.Level[0] - 32) // Uppercase first letter
	} else {
		buf.WriteByte('?')
	}

	buf.WriteString(a.Time)
	buf.WriteByte(' ')
	buf.WriteString(a.Goid)
	buf.WriteByte(' ')
	buf.WriteString(a.Caller)
	buf.WriteString("] ")

	buf.WriteString(a.Message)
	buf.WriteByte('\n')

	return w.Write(buf.Bytes())
}

// createConsoleWriter creates a console writer based on configuration.
func createConsoleWriter(cfg *config.ConsoleConfig) (log.Writer, error) {
	var baseWriter io.Writer
	switch cfg.Writer {
	case "stdout":
		baseWriter = os.Stdout
	case "stderr":
		baseWriter = os.Stderr
	default:
		baseWriter = os.Stderr
	}

	var writer log.Writer

	if cfg.FastIO {
		// Fast IOWriter emits raw JSON lines.
		writer = &log.IOWriter{Writer: baseWriter}
	} else {
		consoleWriter := &log.ConsoleWriter{
			ColorOutput:    cfg.ColorOutput,
			QuoteString:    cfg.QuoteString,
			EndWithMessage: true,
			Writer:         baseWriter,
		}

		switch cfg.Format {
		case "logfmt":
			consoleWriter.Formatter = log.LogfmtFormatter{TimeField: "time"}.Formatter
			writer = consoleWriter
		case "glog":
			consoleWriter.Formatter = GlogFormatter{}.Formatter
			writer = consoleWriter
		case "auto":
			fallthrough
		default:
			writer = consoleWriter
		}
	}

	if cfg.Async {
		return &log.AsyncWriter{
			ChannelSize: 4096,
			Writer:      writer,
		}, nil
	} else if !cfg.FastIO {
		// The ConsoleWriter is not safe for concurrent writers; serialize
		// entries when it is used synchronously.
		writer = &safeWriter{w: writer}
	}
	return writer, nil
}

// createFileWriter creates a file writer based on configuration.
func createFileWriter(cfg *config.FileConfig) (log.Writer, error) {
	if cfg.EnsureFolder {
		dir := filepath.Dir(cfg.Filename)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	baseWriter := &log.FileWriter{
		Filename:     cfg.Filename,
		FileMode:     0644,
		MaxSize:      cfg.MaxSize * 1024 * 1024, // MB to bytes
		MaxBackups:   cfg.MaxBackups,
		TimeFormat:   mapTimeFormat(cfg.TimeFormat),
		LocalTime:    cfg.LocalTime,
		HostName:     cfg.HostName,
		ProcessID:    cfg.ProcessID,
		EnsureFolder: cfg.EnsureFolder,
	}

	if cfg.Async {
		return &log.AsyncWriter{
			ChannelSize: 4096,
			Writer:      baseWriter,
		}, nil
	}
	return baseWriter, nil
}

// createSyslogWriter creates a syslog writer based on configuration.
func createSyslogWriter(cfg *config.SyslogConfig) (log.Writer, error) {
	baseWriter := &log.SyslogWriter{
		Network:  cfg.Network,
		Address:  cfg.Address,
		Hostname: cfg.Hostname,
		Tag:      cfg.Tag,
		Marker:   cfg.Marker,
	}

	if cfg.Async {
		return &log.AsyncWriter{
			ChannelSize: 4096,
			Writer:      baseWriter,
		}, nil
	}
	return baseWriter, nil
}

// createWriter creates a log.Writer based on the output configuration.
func createWriter(output config.LogOutput) (log.Writer, error) {
	if !output.Enabled {
		return nil, nil
	}

	switch output.Type {
	case "console":
		if output.Console == nil {
			return nil, fmt.Errorf("console output missing console configuration")
		}
		return createConsoleWriter(output.Console)

	case "file":
		if output.File == nil {
			return nil, fmt.Errorf("file output missing file configuration")
		}
		return createFileWriter(output.File)

	case "syslog":
		if output.Syslog == nil {
			return nil, fmt.Errorf("syslog output missing syslog configuration")
		}
		return createSyslogWriter(output.Syslog)

	default:
		return nil, fmt.Errorf("unknown output type: %s", output.Type)
	}
}

// createMultiWriter creates a writer that fans out to every enabled output.
func createMultiWriter(outputs []config.LogOutput) (log.Writer, error) {
	var writers []log.Writer

	for _, output := range outputs {
		if !output.Enabled {
			continue
		}

		writer, err := createWriter(output)
		if err != nil {
			return nil, err
		}
		if writer != nil {
			writers = append(writers, writer)
		}
	}

	if len(writers) == 0 {
		// Fallback to stderr if no writers are configured.
		return &log.IOWriter{Writer: os.Stderr}, nil
	}

	if len(writers) == 1 {
		return writers[0], nil
	}

	multiWriter := log.MultiEntryWriter(writers)
	return &multiWriter, nil
}

// safeWriter is a log.Writer wrapper that ensures thread-safety via a mutex.
type safeWriter struct {
	mu sync.Mutex
	w  log.Writer
}

// WriteEntry implements the log.Writer interface under a lock.
func (sw *safeWriter) WriteEntry(e *log.Entry) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.WriteEntry(e)
}

// Close passes the close call to the underlying writer if it is a closer.
func (sw *safeWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if closer, ok := sw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Setup configures the global logger and the writer shared by module
// loggers from the [logging] section.
func Setup(cfg config.LoggingConfig) error {
	multiWriter, err := createMultiWriter(cfg.Outputs)
	if err != nil {
		return err
	}

	sharedWriter = multiWriter
	defaults = cfg.Defaults

	log.DefaultLogger = log.Logger{
		Level:        parseLogLevel(cfg.Defaults.Level),
		Caller:       cfg.Defaults.Caller,
		TimeField:    cfg.Defaults.TimeField,
		TimeFormat:   mapTimeFormat(cfg.Defaults.TimeFormat),
		TimeLocation: parseTimeLocation(cfg.Defaults.TimeLocation),
		Writer:       multiWriter,
	}

	return nil
}

// NewLoggerCtx returns a logger tagged with a module context string,
// writing to the shared configured outputs.
func NewLoggerCtx(module string) log.Logger {
	return log.Logger{
		Level:        parseLogLevel(defaults.Level),
		Caller:       0, // Disable caller for performance
		TimeField:    defaults.TimeField,
		TimeFormat:   mapTimeFormat(defaults.TimeFormat),
		TimeLocation: parseTimeLocation(defaults.TimeLocation),
		Writer:       sharedWriter,
		Context:      log.NewContext(nil).Str("module", module).Value(),
	}
}

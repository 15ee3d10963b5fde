package logger

import (
	"io"
	stdlog "log"
	"os"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/config"
	"github.com/rs/zerolog"
)

// LoggerBuilder assembles a zerolog logger from the log config section.
type LoggerBuilder struct {
	opts    Options
	console io.Writer
}

func NewLoggerBuilder() *LoggerBuilder {
	return &LoggerBuilder{
		opts:    defaultOptions(),
		console: os.Stderr,
	}
}

// WithConfig applies cfg. An unparsable level falls back to info; config validation rejects it earlier.
func (lb *LoggerBuilder) WithConfig(cfg config.LogConfig) *LoggerBuilder {
	if level, err := ParseLevel(cfg.LogLevel); err == nil {
		lb.opts.Level = level
	}
	lb.opts.Format = ParseFormat(cfg.LogFormat)
	lb.opts.FilePath = cfg.LogFile
	if cfg.MaxLogSizeMB > 0 {
		lb.opts.MaxSizeMB = cfg.MaxLogSizeMB
	}
	if cfg.MaxLogBackups > 0 {
		lb.opts.MaxBackups = cfg.MaxLogBackups
	}
	return lb
}

func (lb *LoggerBuilder) WithRunID(runID string) *LoggerBuilder {
	lb.opts.RunID = runID
	return lb
}

func (lb *LoggerBuilder) WithComponent(component string) *LoggerBuilder {
	lb.opts.Component = component
	return lb
}

// WithConsoleWriter redirects console output; nil disables it.
func (lb *LoggerBuilder) WithConsoleWriter(w io.Writer) *LoggerBuilder {
	lb.console = w
	return lb
}

func (lb *LoggerBuilder) Build() (*Logger, error) {
	if lb.opts.MaxSizeMB <= 0 {
		return nil, common.NewValidationError("max_size_mb", lb.opts.MaxSizeMB, "max size must be positive")
	}

	var writers []io.Writer
	if lb.console != nil {
		writers = append(writers, formatWriter(lb.opts.Format, lb.console))
	}
	if lb.opts.FilePath != "" {
		writers = append(writers, fileWriter(lb.opts))
	}
	if len(writers) == 0 {
		return nil, common.NewError("no output writers configured")
	}

	zctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lb.opts.Level).
		With().
		Timestamp()
	if lb.opts.Component != "" {
		zctx = zctx.Str("component", lb.opts.Component)
	}
	if lb.opts.RunID != "" {
		zctx = zctx.Str("run_id", lb.opts.RunID)
	}
	zl := zctx.Logger()

	// Route stray stdlib log output (e.g. net/http server errors) through zerolog.
	stdlog.SetOutput(zl)
	stdlog.SetFlags(0)

	return &Logger{zerolog: zl, opts: lb.opts}, nil
}

// Package logger builds the zerolog loggers used by every overwatch process.
package logger

import (
	"github.com/aleister1102/overwatch/internal/config"
	"github.com/rs/zerolog"
)

// Logger is a built logger together with the options it was built from.
type Logger struct {
	zerolog zerolog.Logger
	opts    Options
}

func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zerolog
}

func (l *Logger) Options() Options {
	return l.opts
}

// New creates a logger for a process role.
func New(cfg config.LogConfig, component string) (zerolog.Logger, error) {
	return NewForRun(cfg, component, "")
}

// NewForRun creates a logger whose events and file output are grouped by supervisor run.
func NewForRun(cfg config.LogConfig, component, runID string) (zerolog.Logger, error) {
	built, err := NewLoggerBuilder().
		WithConfig(cfg).
		WithComponent(component).
		WithRunID(runID).
		Build()
	if err != nil {
		return zerolog.Logger{}, err
	}
	return *built.GetZerolog(), nil
}

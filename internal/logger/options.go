package logger

import (
	"strings"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/rs/zerolog"
)

// Format selects how events are rendered.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
	// FormatText is the console layout without colors.
	FormatText Format = "text"
)

// ParseFormat maps a config value to a Format; unknown values fall back to console.
func ParseFormat(s string) Format {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatText:
		return f
	default:
		return FormatConsole
	}
}

// ParseLevel maps a config value to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.InfoLevel, common.WrapError(err, "invalid log level")
	}
	return level, nil
}

// Options is the resolved logger setup.
type Options struct {
	Level  zerolog.Level
	Format Format

	// FilePath enables a rotating file writer when set.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int

	// RunID nests the log file under runs/<RunID>/ and tags every event.
	RunID string
	// Component tags every event with the process role.
	Component string
}

func defaultOptions() Options {
	return Options{
		Level:      zerolog.InfoLevel,
		Format:     FormatConsole,
		MaxSizeMB:  100,
		MaxBackups: 3,
	}
}

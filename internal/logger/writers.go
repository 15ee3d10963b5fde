package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// formatWriter wraps out for the given format. JSON is written as-is.
func formatWriter(format Format, out io.Writer) io.Writer {
	if format == FormatJSON {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    format == FormatText,
	}
}

// fileWriter returns a lumberjack writer at LogPath(opts). Console formats lose their colors in files.
func fileWriter(opts Options) io.Writer {
	path := LogPath(opts)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		path = opts.FilePath
	}

	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		LocalTime:  true,
	}
	if opts.Format == FormatJSON {
		return rotating
	}
	return formatWriter(FormatText, rotating)
}

// LogPath returns FilePath, nested under runs/<RunID>/ when a run ID is set.
func LogPath(opts Options) string {
	if opts.RunID == "" {
		return opts.FilePath
	}
	return filepath.Join(filepath.Dir(opts.FilePath), "runs", opts.RunID, filepath.Base(opts.FilePath))
}

package findings

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// TailReader follows a growing line-oriented file by byte offset.
// Only complete lines are returned; a trailing fragment stays in the file until terminated.
type TailReader struct {
	fs      afero.Fs
	path    string
	offset  int64
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

func NewTailReader(fs afero.Fs, path string, logger zerolog.Logger) *TailReader {
	return &TailReader{
		fs:     fs,
		path:   path,
		logger: logger.With().Str("module", "TailReader").Str("path", path).Logger(),
	}
}

// Offset returns the byte position just past the last consumed line.
func (tr *TailReader) Offset() int64 {
	return tr.offset
}

// Poll returns the complete lines appended since the previous call.
// A missing file yields no lines. A file shorter than the cursor resets it to zero.
func (tr *TailReader) Poll() ([]string, error) {
	f, err := tr.fs.Open(tr.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.WrapError(err, "failed to open findings file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, common.WrapError(err, "failed to stat findings file")
	}
	if info.Size() < tr.offset {
		tr.logger.Warn().Int64("offset", tr.offset).Int64("size", info.Size()).Msg("Findings file shrank, restarting from the beginning")
		tr.offset = 0
	}
	if info.Size() == tr.offset {
		return nil, nil
	}

	if _, err := f.Seek(tr.offset, io.SeekStart); err != nil {
		return nil, common.WrapError(err, "failed to seek findings file")
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, common.WrapError(err, "failed to read findings file")
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, nil
	}
	tr.offset += int64(end + 1)

	var lines []string
	for _, line := range strings.Split(string(data[:end]), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Watch enables early wake-ups from file system events on the store's directory.
// Wait falls back to a plain timer when this fails.
func (tr *TailReader) Watch() error {
	if _, ok := tr.fs.(*afero.OsFs); !ok {
		return common.NewError("file watching requires the OS filesystem")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return common.WrapError(err, "failed to create file watcher")
	}
	dir := filepath.Dir(tr.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return common.WrapErrorf(err, "failed to watch directory '%s'", dir)
	}
	tr.watcher = watcher
	tr.logger.Debug().Str("directory", dir).Msg("File watcher enabled")
	return nil
}

// Wait blocks for at most interval, returning early on a write to the store or on cancellation.
func (tr *TailReader) Wait(ctx context.Context, interval time.Duration) error {
	if tr.watcher == nil {
		return common.SleepContext(ctx, interval)
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case event, ok := <-tr.watcher.Events:
			if !ok {
				tr.watcher = nil
				return common.SleepContext(ctx, interval)
			}
			if filepath.Clean(event.Name) == filepath.Clean(tr.path) && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				return nil
			}
		case err, ok := <-tr.watcher.Errors:
			if !ok {
				tr.watcher = nil
				return common.SleepContext(ctx, interval)
			}
			tr.logger.Debug().Err(err).Msg("File watcher error")
		}
	}
}

// Close releases the watcher if one was started.
func (tr *TailReader) Close() error {
	if tr.watcher == nil {
		return nil
	}
	err := tr.watcher.Close()
	tr.watcher = nil
	return err
}

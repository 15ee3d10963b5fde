package findings

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const backupTimeLayout = "20060102_150405"

// NoCarryOver tells compact to drop everything not in keep.
const NoCarryOver int64 = -1

// PendingStore is the JSONL file of findings that still need a notification attempt.
type PendingStore struct {
	fs     afero.Fs
	path   string
	lock   storeLock
	logger zerolog.Logger
	now    func() time.Time
}

// NewPendingStore opens the store at path. On the OS filesystem writers are
// serialized with an advisory lock on <path>.lock.
func NewPendingStore(fs afero.Fs, path string, logger zerolog.Logger) *PendingStore {
	var lock storeLock = &mutexLock{}
	if _, ok := fs.(*afero.OsFs); ok {
		lock = newFileLock(path)
	}
	return &PendingStore{
		fs:     fs,
		path:   path,
		lock:   lock,
		logger: logger.With().Str("module", "PendingStore").Str("path", path).Logger(),
		now:    time.Now,
	}
}

func (ps *PendingStore) Path() string {
	return ps.path
}

// Append writes findings as JSON lines at the end of the store.
func (ps *PendingStore) Append(ctx context.Context, findings ...models.Finding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(findings) == 0 {
		return nil
	}

	buf, err := encodeFindings(findings)
	if err != nil {
		return err
	}

	if err := ps.lock.Lock(); err != nil {
		return common.WrapError(err, "failed to lock findings store")
	}
	defer ps.lock.Unlock()

	if err := ps.fs.MkdirAll(filepath.Dir(ps.path), 0755); err != nil {
		return common.WrapError(err, "failed to create findings directory")
	}
	f, err := ps.fs.OpenFile(ps.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return common.WrapError(err, "failed to open findings file for append")
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return common.WrapError(err, "failed to append findings")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return common.WrapError(err, "failed to sync findings file")
	}
	return f.Close()
}

// Backup copies the current store to <path>.backup.<YYYYMMDD_HHMMSS>.
// A name collision adds a numeric suffix. A missing store yields an empty path.
func (ps *PendingStore) Backup() (string, error) {
	if err := ps.lock.Lock(); err != nil {
		return "", common.WrapError(err, "failed to lock findings store")
	}
	defer ps.lock.Unlock()

	content, exists, err := ps.readContent()
	if err != nil || !exists {
		return "", err
	}
	return ps.writeBackup(content)
}

// Compact replaces the store with keep, after taking a backup.
func (ps *PendingStore) Compact(ctx context.Context, keep []models.Finding) error {
	return ps.CompactAfter(ctx, keep, NoCarryOver)
}

// CompactAfter replaces the store with keep followed by every byte past consumed,
// so records appended after the reader's last poll survive the rewrite.
// The new content is written to a temporary file and renamed over the store.
func (ps *PendingStore) CompactAfter(ctx context.Context, keep []models.Finding, consumed int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf, err := encodeFindings(keep)
	if err != nil {
		return err
	}

	if err := ps.lock.Lock(); err != nil {
		return common.WrapError(err, "failed to lock findings store")
	}
	defer ps.lock.Unlock()

	content, exists, err := ps.readContent()
	if err != nil {
		return err
	}

	var carried int
	if exists {
		if _, err := ps.writeBackup(content); err != nil {
			return err
		}
		if consumed >= 0 && int64(len(content)) > consumed {
			tail := content[consumed:]
			carried = bytes.Count(tail, []byte("\n"))
			buf = append(buf, tail...)
		}
	}

	if err := ps.replace(buf); err != nil {
		return err
	}

	ps.logger.Info().Int("kept", len(keep)).Int("carried_over", carried).Msg("Compacted findings store")
	return nil
}

// ReadAll loads every record. Malformed lines are returned as faults instead of failing the load.
func (ps *PendingStore) ReadAll(ctx context.Context) ([]models.Finding, []*ParseFault, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f, err := ps.fs.Open(ps.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, common.WrapError(err, "failed to open findings file")
	}
	defer f.Close()

	var (
		records []models.Finding
		faults  []*ParseFault
	)
	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) != "" {
			finding, err := Parse(line)
			if err != nil {
				if fault, ok := err.(*ParseFault); ok {
					faults = append(faults, fault)
				}
			} else {
				records = append(records, finding)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, common.WrapError(readErr, "failed to read findings file")
		}
	}
	return records, faults, nil
}

// Reset removes the store. A missing store is not an error.
func (ps *PendingStore) Reset() error {
	if err := ps.lock.Lock(); err != nil {
		return common.WrapError(err, "failed to lock findings store")
	}
	defer ps.lock.Unlock()

	if err := ps.fs.Remove(ps.path); err != nil && !os.IsNotExist(err) {
		return common.WrapError(err, "failed to remove findings file")
	}
	return nil
}

func (ps *PendingStore) readContent() ([]byte, bool, error) {
	content, err := afero.ReadFile(ps.fs, ps.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, common.WrapError(err, "failed to read findings file")
	}
	return content, true, nil
}

func (ps *PendingStore) writeBackup(content []byte) (string, error) {
	base := fmt.Sprintf("%s.backup.%s", ps.path, ps.now().Format(backupTimeLayout))
	backupPath := base
	for i := 1; ; i++ {
		exists, err := afero.Exists(ps.fs, backupPath)
		if err != nil {
			return "", common.WrapError(err, "failed to check backup path")
		}
		if !exists {
			break
		}
		backupPath = fmt.Sprintf("%s_%d", base, i)
	}

	if err := afero.WriteFile(ps.fs, backupPath, content, 0644); err != nil {
		return "", common.WrapError(err, "failed to write findings backup")
	}
	ps.logger.Debug().Str("backup", backupPath).Int("bytes", len(content)).Msg("Backed up findings store")
	return backupPath, nil
}

// replace writes content to a sibling temp file, syncs it and renames it over the store.
// The store is either the old content or the new content, never a partial write.
func (ps *PendingStore) replace(content []byte) error {
	dir := filepath.Dir(ps.path)
	if err := ps.fs.MkdirAll(dir, 0755); err != nil {
		return common.WrapError(err, "failed to create findings directory")
	}

	tmp, err := afero.TempFile(ps.fs, dir, filepath.Base(ps.path)+".tmp-*")
	if err != nil {
		return common.WrapError(err, "failed to create temporary findings file")
	}
	tmpPath := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = ps.fs.Remove(tmpPath)
		return cause
	}

	if _, err := tmp.Write(content); err != nil {
		return cleanup(common.WrapError(err, "failed to write temporary findings file"))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(common.WrapError(err, "failed to sync temporary findings file"))
	}
	if err := tmp.Close(); err != nil {
		return cleanup(common.WrapError(err, "failed to close temporary findings file"))
	}
	if err := ps.fs.Rename(tmpPath, ps.path); err != nil {
		_ = ps.fs.Remove(tmpPath)
		return common.WrapError(err, "failed to replace findings file")
	}
	return nil
}

func encodeFindings(findings []models.Finding) ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range findings {
		line, err := json.Marshal(f)
		if err != nil {
			return nil, common.WrapErrorf(err, "failed to encode finding %s", f.Key())
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

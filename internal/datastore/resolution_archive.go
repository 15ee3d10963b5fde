package datastore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

// ResolutionArchive buffers resolution records and persists them to a Parquet file.
type ResolutionArchive struct {
	path   string
	logger zerolog.Logger

	mu     sync.Mutex
	buffer []models.ResolutionRecord
}

func NewResolutionArchive(path string, logger zerolog.Logger) *ResolutionArchive {
	return &ResolutionArchive{
		path:   path,
		logger: logger.With().Str("module", "ResolutionArchive").Str("path", path).Logger(),
	}
}

// Add buffers a record until the next Flush.
func (ra *ResolutionArchive) Add(rec models.ResolutionRecord) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.buffer = append(ra.buffer, rec)
}

// Pending returns the number of buffered records.
func (ra *ResolutionArchive) Pending() int {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return len(ra.buffer)
}

// Flush appends buffered records to the archive. Parquet files cannot be appended in
// place, so existing rows are read back and the file is rewritten through a rename.
func (ra *ResolutionArchive) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ra.mu.Lock()
	defer ra.mu.Unlock()
	if len(ra.buffer) == 0 {
		return nil
	}

	existing, err := ra.read()
	if err != nil {
		return err
	}
	rows := append(existing, ra.buffer...)

	if err := ra.write(rows); err != nil {
		return err
	}

	ra.logger.Info().Int("records_written", len(ra.buffer)).Int("total_records", len(rows)).Msg("Flushed resolution archive")
	ra.buffer = nil
	return nil
}

// ReadAll returns every archived record. A missing archive is empty.
func (ra *ResolutionArchive) ReadAll(ctx context.Context) ([]models.ResolutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return ra.read()
}

func (ra *ResolutionArchive) read() ([]models.ResolutionRecord, error) {
	file, err := os.Open(ra.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.WrapError(err, "failed to open resolution archive")
	}
	defer file.Close()

	reader := parquet.NewGenericReader[models.ResolutionRecord](file)
	defer reader.Close()

	records := make([]models.ResolutionRecord, 0, reader.NumRows())
	batch := make([]models.ResolutionRecord, 128)
	for {
		n, err := reader.Read(batch)
		records = append(records, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.WrapError(err, "failed to read resolution archive")
		}
		if n == 0 {
			break
		}
	}
	return records, nil
}

func (ra *ResolutionArchive) write(rows []models.ResolutionRecord) error {
	dir := filepath.Dir(ra.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return common.WrapError(err, "failed to create archive directory: "+dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(ra.path)+".tmp-*")
	if err != nil {
		return common.WrapError(err, "failed to create temporary archive file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := parquet.NewGenericWriter[models.ResolutionRecord](tmp, parquet.Compression(&parquet.Zstd))
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		_ = tmp.Close()
		return common.WrapError(err, "failed to write resolution records")
	}
	if err := writer.Close(); err != nil {
		_ = tmp.Close()
		return common.WrapError(err, "failed to finalize resolution archive")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return common.WrapError(err, "failed to sync resolution archive")
	}
	if err := tmp.Close(); err != nil {
		return common.WrapError(err, "failed to close resolution archive")
	}
	if err := os.Rename(tmpPath, ra.path); err != nil {
		return common.WrapError(err, "failed to replace resolution archive")
	}
	return nil
}

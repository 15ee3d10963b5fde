package consumer

import (
	"context"
	"strings"
	"testing"

	"github.com/aleister1102/overwatch/internal/models"
	"github.com/aleister1102/overwatch/internal/notifier"
	"github.com/aleister1102/overwatch/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_RewritesWithTransientFailures(t *testing.T) {
	h := newHarness(t)
	h.tracker.AddRepository("acme/ok")
	h.tracker.AddRepository("acme/flaky")
	h.tracker.ListErr["acme/flaky"] = &tracker.APIError{StatusCode: 502}
	require.NoError(t, h.store.Append(context.Background(), rec("ok", 1), rec("flaky", 2)))

	batch := NewBatch(h.store, h.classifier(t, false), h.session, h.archive, false, zerolog.Nop())
	res, err := batch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, notifier.Summary{Success: 1, TransientFailure: 1}, res.Summary)
	assert.Equal(t, []models.Finding{rec("flaky", 2)}, h.remaining(t))
	assert.Len(t, h.archive.records, 1)

	entries, err := afero.ReadDir(h.fs, "/data")
	require.NoError(t, err)
	var backups int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "findings.jsonl.backup.") {
			backups++
		}
	}
	assert.Equal(t, 1, backups)
}

func TestBatch_NothingResolvedLeavesFile(t *testing.T) {
	h := newHarness(t)
	h.tracker.AddRepository("acme/flaky")
	h.tracker.LookupErr["acme/flaky"] = &tracker.APIError{StatusCode: 500}
	require.NoError(t, h.store.Append(context.Background(), rec("flaky", 1)))
	before := mustRead(t, h.fs)

	res, err := NewBatch(h.store, h.classifier(t, false), h.session, h.archive, false, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retained)
	assert.Equal(t, before, mustRead(t, h.fs))
}

func TestBatch_DryRun(t *testing.T) {
	h := newHarness(t)
	h.tracker.AddRepository("acme/ok")
	require.NoError(t, h.store.Append(context.Background(), rec("ok", 1)))
	before := mustRead(t, h.fs)

	res, err := NewBatch(h.store, h.classifier(t, true), h.session, h.archive, true, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notifier.Summary{Success: 1}, res.Summary)
	assert.Equal(t, before, mustRead(t, h.fs))
	assert.Empty(t, h.archive.records)
}

func TestBatch_MissingStore(t *testing.T) {
	h := newHarness(t)
	res, err := NewBatch(h.store, h.classifier(t, false), h.session, nil, false, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Summary.Total())
}

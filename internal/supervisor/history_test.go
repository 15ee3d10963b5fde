package supervisor

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryDB_RecordUpdateList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := NewHistoryDB(path, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var ids []int64
	for i, query := range []string{"first", "second", "third"} {
		id, err := db.RecordRunStart(ctx, RunRecord{
			RunID:     query + "-run",
			Query:     query,
			MaxRepos:  i,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			State:     StateIdle,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, db.UpdateRunCompletion(ctx, ids[1], RunRecord{
		EndedAt:      sql.NullTime{Time: base.Add(5 * time.Minute), Valid: true},
		State:        StateInterrupted,
		ProducerExit: sql.NullInt64{Int64: -1, Valid: true},
		ConsumerExit: sql.NullInt64{Int64: 143, Valid: true},
		Interrupted:  true,
	}))

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].Query)
	assert.Equal(t, StateIdle, runs[0].State)
	assert.False(t, runs[0].EndedAt.Valid)
	assert.False(t, runs[0].ProducerExit.Valid)

	second := runs[1]
	assert.Equal(t, "second", second.Query)
	assert.Equal(t, StateInterrupted, second.State)
	assert.True(t, second.Interrupted)
	assert.Equal(t, int64(-1), second.ProducerExit.Int64)
	assert.Equal(t, int64(143), second.ConsumerExit.Int64)
	assert.True(t, second.StartedAt.Equal(base.Add(time.Minute)))
	assert.True(t, second.EndedAt.Time.Equal(base.Add(5*time.Minute)))

	_, err = db.RecordRunStart(ctx, RunRecord{RunID: "third-run", Query: "dup", StartedAt: base, State: StateIdle})
	assert.Error(t, err, "run IDs are unique")
}

package notifier

import (
	"sync"
	"testing"

	"github.com/aleister1102/overwatch/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSession_LedgerAndCounts(t *testing.T) {
	s := NewSession()
	assert.NotEmpty(t, s.ID())
	assert.NotEqual(t, s.ID(), NewSession().ID())

	key := testFinding().Key()
	s.Record(key, models.TransientFailure(models.ReasonOther))
	assert.False(t, s.IsResolved(key))

	s.Record(key, models.PermanentSkip(models.ReasonDuplicate))
	assert.True(t, s.IsResolved(key))
	assert.Equal(t, Summary{PermanentSkip: 1, TransientFailure: 1}, s.Summary())
	assert.Equal(t, 2, s.Summary().Total())
}

func TestSession_ConcurrentRecord(t *testing.T) {
	s := NewSession()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			s.Record(models.IdentityKey{Owner: "o", Repo: "r", File: "f", Line: line}, models.Success(models.ReasonCreated))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Summary().Success)
}

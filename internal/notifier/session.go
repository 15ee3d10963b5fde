package notifier

import (
	"sync"
	"time"

	"github.com/aleister1102/overwatch/internal/models"
	"github.com/google/uuid"
)

// Summary counts classified findings by status.
type Summary struct {
	Success          int
	PermanentSkip    int
	TransientFailure int
}

func (s Summary) Total() int {
	return s.Success + s.PermanentSkip + s.TransientFailure
}

// Session holds the per-process state of one notifier run: the ledger of resolved
// findings and the running counts. It is never persisted.
type Session struct {
	id        string
	startedAt time.Time

	mu       sync.Mutex
	resolved map[models.IdentityKey]struct{}
	summary  Summary
}

func NewSession() *Session {
	return &Session{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		resolved:  make(map[models.IdentityKey]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// IsResolved reports whether key reached a terminal outcome earlier in this session.
func (s *Session) IsResolved(key models.IdentityKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.resolved[key]
	return ok
}

// Record counts an outcome and adds key to the ledger when the outcome is terminal.
func (s *Session) Record(key models.IdentityKey, outcome models.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch outcome.Status {
	case models.StatusSuccess:
		s.summary.Success++
	case models.StatusPermanentSkip:
		s.summary.PermanentSkip++
	case models.StatusTransientFailure:
		s.summary.TransientFailure++
	}
	if outcome.IsTerminal() {
		s.resolved[key] = struct{}{}
	}
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

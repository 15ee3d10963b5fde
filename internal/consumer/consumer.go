// Package consumer drives findings from the pending store through the classifier.
package consumer

import (
	"context"
	"time"

	"github.com/aleister1102/overwatch/internal/models"
	"github.com/aleister1102/overwatch/internal/notifier"
	"github.com/rs/zerolog"
)

// Classifier resolves one finding within a session.
type Classifier interface {
	Classify(ctx context.Context, session *notifier.Session, f models.Finding) models.Outcome
}

// Archive receives terminal outcomes for auditing.
type Archive interface {
	Add(rec models.ResolutionRecord)
	Flush(ctx context.Context) error
}

// Result reports what a consumer run did.
type Result struct {
	Summary     notifier.Summary
	Retained    int
	Faults      int
	Interrupted bool
}

// tally classifies f and keeps the bookkeeping shared by stream and batch modes.
type tally struct {
	classifier Classifier
	session    *notifier.Session
	archive    Archive
	dryRun     bool
	logger     zerolog.Logger

	retained []models.Finding
	faults   int
}

func (t *tally) classify(ctx context.Context, f models.Finding) models.Outcome {
	outcome := t.classifier.Classify(ctx, t.session, f)
	if !outcome.IsTerminal() {
		t.retained = append(t.retained, f)
		return outcome
	}
	if t.archive != nil && !t.dryRun && outcome.Reason != models.ReasonAlreadyResolved {
		t.archive.Add(models.NewResolutionRecord(f, outcome, t.session.ID(), time.Now()))
	}
	return outcome
}

// pending returns retained findings not resolved later in the session, one per identity.
func (t *tally) pending() []models.Finding {
	seen := make(map[models.IdentityKey]struct{}, len(t.retained))
	var keep []models.Finding
	for _, f := range t.retained {
		key := f.Key()
		if _, dup := seen[key]; dup || t.session.IsResolved(key) {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, f)
	}
	return keep
}

func (t *tally) flushArchive(ctx context.Context) {
	if t.archive == nil || t.dryRun {
		return
	}
	if err := t.archive.Flush(ctx); err != nil {
		t.logger.Error().Err(err).Msg("Failed to flush resolution archive")
	}
}

func logSummary(logger zerolog.Logger, msg string, summary notifier.Summary, retained int) {
	logger.Info().
		Int("total", summary.Total()).
		Int("success", summary.Success).
		Int("permanent_skip", summary.PermanentSkip).
		Int("transient_failure", summary.TransientFailure).
		Int("remaining_for_retry", retained).
		Msg(msg)
}

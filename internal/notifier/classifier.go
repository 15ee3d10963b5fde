package notifier

import (
	"context"
	"errors"

	"github.com/aleister1102/overwatch/internal/models"
	"github.com/aleister1102/overwatch/internal/tracker"
	"github.com/rs/zerolog"
)

// ClassifierConfig configures a Classifier. Zero values select defaults.
type ClassifierConfig struct {
	DryRun  bool
	Labels  []string
	Policy  DuplicatePolicy
	Metrics *Metrics
}

// Classifier attempts one notification per finding and reports the outcome.
// Every tracker error is converted into an outcome; Classify never fails.
type Classifier struct {
	tracker  tracker.Tracker
	renderer *IssueRenderer
	policy   DuplicatePolicy
	dryRun   bool
	metrics  *Metrics
	logger   zerolog.Logger
}

func NewClassifier(t tracker.Tracker, cfg ClassifierConfig, logger zerolog.Logger) (*Classifier, error) {
	renderer, err := NewIssueRenderer(cfg.Labels)
	if err != nil {
		return nil, err
	}
	policy := cfg.Policy
	if policy == nil {
		policy = DefaultDuplicatePolicy()
	}
	return &Classifier{
		tracker:  t,
		renderer: renderer,
		policy:   policy,
		dryRun:   cfg.DryRun,
		metrics:  cfg.Metrics,
		logger:   logger.With().Str("module", "Classifier").Logger(),
	}, nil
}

// Classify resolves f within session. A finding already resolved in the session
// short-circuits to Success(already-resolved) without touching the tracker.
func (c *Classifier) Classify(ctx context.Context, session *Session, f models.Finding) models.Outcome {
	key := f.Key()
	if session.IsResolved(key) {
		c.logger.Debug().Str("finding", key.String()).Msg("Finding already resolved in this session")
		return models.Success(models.ReasonAlreadyResolved)
	}

	outcome := c.attempt(ctx, f)
	session.Record(key, outcome)
	c.metrics.ObserveOutcome(outcome)

	event := c.logger.Info()
	if outcome.Status == models.StatusTransientFailure {
		event = c.logger.Warn()
	}
	event.
		Str("repository", f.FullName()).
		Str("file", f.File).
		Int("line", f.Line).
		Str("status", string(outcome.Status)).
		Str("reason", string(outcome.Reason))
	if outcome.IssueNumber > 0 {
		event.Int("issue_number", outcome.IssueNumber).Str("issue_url", outcome.IssueURL)
	}
	event.Msg("Finding classified")

	return outcome
}

func (c *Classifier) attempt(ctx context.Context, f models.Finding) models.Outcome {
	fullName := f.FullName()
	log := c.logger.With().Str("repository", fullName).Logger()

	repo, err := c.tracker.GetRepository(ctx, fullName)
	if err != nil {
		log.Debug().Err(err).Msg("Repository lookup failed")
		switch {
		case errors.Is(err, tracker.ErrRateLimited):
			return models.TransientFailure(models.ReasonRateLimited)
		case errors.Is(err, tracker.ErrNotFound):
			return models.PermanentSkip(models.ReasonNotFound)
		case errors.Is(err, tracker.ErrForbidden):
			return models.PermanentSkip(models.ReasonForbiddenLookup)
		default:
			return models.TransientFailure(models.ReasonOther)
		}
	}

	if !repo.HasIssues {
		return models.PermanentSkip(models.ReasonIssuesDisabled)
	}
	if repo.Archived {
		return models.PermanentSkip(models.ReasonArchived)
	}

	issue, err := c.renderer.Render(f)
	if err != nil {
		log.Error().Err(err).Msg("Failed to render issue")
		return models.TransientFailure(models.ReasonOther)
	}

	existing, err := c.tracker.ListIssues(ctx, fullName)
	if err != nil {
		log.Debug().Err(err).Msg("Issue listing failed")
		if errors.Is(err, tracker.ErrRateLimited) {
			return models.TransientFailure(models.ReasonRateLimited)
		}
		return models.TransientFailure(models.ReasonOther)
	}
	if c.policy.IsDuplicate(issue.Title, existing) {
		return models.PermanentSkip(models.ReasonDuplicate)
	}

	if c.dryRun {
		log.Info().Str("title", issue.Title).Str("file", f.File).Int("line", f.Line).Msg("[DRY-RUN] Would create issue")
		return models.Success(models.ReasonDryRun)
	}

	created, err := c.tracker.CreateIssue(ctx, fullName, issue)
	if err != nil {
		log.Debug().Err(err).Msg("Issue creation failed")
		switch {
		case errors.Is(err, tracker.ErrRateLimited):
			return models.TransientFailure(models.ReasonRateLimited)
		case errors.Is(err, tracker.ErrForbidden):
			return models.TransientFailure(models.ReasonForbiddenCreate)
		case errors.Is(err, tracker.ErrGone):
			return models.PermanentSkip(models.ReasonArchived)
		default:
			return models.TransientFailure(models.ReasonOther)
		}
	}

	outcome := models.Success(models.ReasonCreated)
	outcome.IssueNumber = created.Number
	outcome.IssueURL = created.URL
	return outcome
}

package models

import "fmt"

// OutcomeStatus is the tri-state result of a notification attempt.
type OutcomeStatus string

const (
	StatusSuccess          OutcomeStatus = "success"
	StatusPermanentSkip    OutcomeStatus = "permanent_skip"
	StatusTransientFailure OutcomeStatus = "transient_failure"
)

// OutcomeReason explains an outcome.
type OutcomeReason string

const (
	// Success reasons
	ReasonCreated         OutcomeReason = "created"
	ReasonDryRun          OutcomeReason = "dry-run"
	ReasonAlreadyResolved OutcomeReason = "already-resolved"

	// Permanent skip reasons
	ReasonNotFound        OutcomeReason = "not-found"
	ReasonForbiddenLookup OutcomeReason = "forbidden-lookup"
	ReasonIssuesDisabled  OutcomeReason = "issues-disabled"
	ReasonDuplicate       OutcomeReason = "duplicate"
	ReasonArchived        OutcomeReason = "archived"

	// Transient failure reasons
	ReasonForbiddenCreate OutcomeReason = "forbidden-create"
	ReasonRateLimited     OutcomeReason = "rate-limited"
	ReasonOther           OutcomeReason = "other"
)

// Outcome is the classification of one finding. IssueNumber and IssueURL are set only on creation.
type Outcome struct {
	Status      OutcomeStatus
	Reason      OutcomeReason
	IssueNumber int
	IssueURL    string
}

func Success(reason OutcomeReason) Outcome {
	return Outcome{Status: StatusSuccess, Reason: reason}
}

func PermanentSkip(reason OutcomeReason) Outcome {
	return Outcome{Status: StatusPermanentSkip, Reason: reason}
}

func TransientFailure(reason OutcomeReason) Outcome {
	return Outcome{Status: StatusTransientFailure, Reason: reason}
}

// IsTerminal reports whether the finding is resolved and must not be retried.
func (o Outcome) IsTerminal() bool {
	return o.Status == StatusSuccess || o.Status == StatusPermanentSkip
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s(%s)", o.Status, o.Reason)
}

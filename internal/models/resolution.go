package models

import "time"

// ResolutionRecord is the archived result of a terminal notification attempt.
type ResolutionRecord struct {
	Owner       string  `parquet:"owner,dict" json:"owner"`
	Repo        string  `parquet:"repo,dict" json:"repo"`
	File        string  `parquet:"file" json:"file"`
	Line        int32   `parquet:"line" json:"line"`
	SecretType  string  `parquet:"secret_type,dict" json:"secret_type"`
	Status      string  `parquet:"status,dict" json:"status"`
	Reason      string  `parquet:"reason,dict" json:"reason"`
	IssueNumber *int32  `parquet:"issue_number,optional" json:"issue_number,omitempty"`
	IssueURL    *string `parquet:"issue_url,optional" json:"issue_url,omitempty"`
	SessionID   string  `parquet:"session_id" json:"session_id"`
	ResolvedAt  int64   `parquet:"resolved_at,timestamp(millisecond)" json:"resolved_at"`
}

// NewResolutionRecord flattens a finding and its outcome for archiving.
func NewResolutionRecord(f Finding, outcome Outcome, sessionID string, at time.Time) ResolutionRecord {
	rec := ResolutionRecord{
		Owner:      f.Owner,
		Repo:       f.Repo,
		File:       f.File,
		Line:       int32(f.Line),
		SecretType: f.SecretType,
		Status:     string(outcome.Status),
		Reason:     string(outcome.Reason),
		SessionID:  sessionID,
		ResolvedAt: at.UnixMilli(),
	}
	if outcome.IssueNumber > 0 {
		number := int32(outcome.IssueNumber)
		rec.IssueNumber = &number
	}
	if outcome.IssueURL != "" {
		url := outcome.IssueURL
		rec.IssueURL = &url
	}
	return rec
}

// ResolvedTime converts ResolvedAt back to a time.
func (r ResolutionRecord) ResolvedTime() time.Time {
	return time.UnixMilli(r.ResolvedAt)
}

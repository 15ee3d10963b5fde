package models

import (
	"fmt"
	"time"
)

// Finding is one detected credential exposure as written by the scanner.
type Finding struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	SecretType string `json:"secret_type"`
	Timestamp  string `json:"timestamp"`
}

// IdentityKey identifies a finding location. Two findings with the same key are the same exposure.
type IdentityKey struct {
	Owner string
	Repo  string
	File  string
	Line  int
}

// String renders the key as owner:repo:file:line.
func (k IdentityKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%d", k.Owner, k.Repo, k.File, k.Line)
}

// Key returns the identity key of the finding.
func (f Finding) Key() IdentityKey {
	return IdentityKey{Owner: f.Owner, Repo: f.Repo, File: f.File, Line: f.Line}
}

// FullName returns the repository as owner/repo.
func (f Finding) FullName() string {
	return f.Owner + "/" + f.Repo
}

// DetectedAt parses the scanner timestamp. Unparseable values yield the zero time.
func (f Finding) DetectedAt() time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, f.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Package tracker is the issue tracker capability used to notify repository owners.
package tracker

import "context"

// Tracker is the subset of an issue tracker API needed to file exposure notices.
type Tracker interface {
	// Authenticate verifies the credentials and returns the acting identity.
	Authenticate(ctx context.Context) (Identity, error)
	GetRepository(ctx context.Context, fullName string) (Repository, error)
	// ListIssues returns the repository's issues, open and closed.
	ListIssues(ctx context.Context, fullName string) ([]Issue, error)
	CreateIssue(ctx context.Context, fullName string, issue NewIssue) (CreatedIssue, error)
}

type Identity struct {
	Login string
}

type Repository struct {
	FullName  string
	HasIssues bool
	Archived  bool
}

type Issue struct {
	Number int
	Title  string
	State  string
}

type NewIssue struct {
	Title  string
	Body   string
	Labels []string
}

type CreatedIssue struct {
	Number int
	URL    string
}

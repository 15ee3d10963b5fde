// Package trackertest provides an in-memory tracker for tests.
package trackertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aleister1102/overwatch/internal/tracker"
)

// Fake is an in-memory tracker.Tracker. Errors set in the maps are returned for
// the matching repository; created issues are appended to the repository's list.
type Fake struct {
	mu sync.Mutex

	Login        string
	AuthErr      error
	Repositories map[string]tracker.Repository
	Issues       map[string][]tracker.Issue
	LookupErr    map[string]error
	ListErr      map[string]error
	CreateErr    map[string]error

	Calls   map[string]int
	Created []tracker.NewIssue
}

func NewFake() *Fake {
	return &Fake{
		Login:        "overwatch-bot",
		Repositories: make(map[string]tracker.Repository),
		Issues:       make(map[string][]tracker.Issue),
		LookupErr:    make(map[string]error),
		ListErr:      make(map[string]error),
		CreateErr:    make(map[string]error),
		Calls:        make(map[string]int),
	}
}

// AddRepository registers a repository that accepts issues.
func (f *Fake) AddRepository(fullName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Repositories[fullName] = tracker.Repository{FullName: fullName, HasIssues: true}
}

// CallCount returns how often operation was invoked.
func (f *Fake) CallCount(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[operation]
}

func (f *Fake) CreatedIssues() []tracker.NewIssue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tracker.NewIssue(nil), f.Created...)
}

func (f *Fake) Authenticate(ctx context.Context) (tracker.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["authenticate"]++
	if f.AuthErr != nil {
		return tracker.Identity{}, f.AuthErr
	}
	return tracker.Identity{Login: f.Login}, nil
}

func (f *Fake) GetRepository(ctx context.Context, fullName string) (tracker.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["get_repository"]++
	if err := f.LookupErr[fullName]; err != nil {
		return tracker.Repository{}, err
	}
	repo, ok := f.Repositories[fullName]
	if !ok {
		return tracker.Repository{}, &tracker.APIError{StatusCode: 404, Message: "Not Found", Err: tracker.ErrNotFound}
	}
	return repo, nil
}

func (f *Fake) ListIssues(ctx context.Context, fullName string) ([]tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["list_issues"]++
	if err := f.ListErr[fullName]; err != nil {
		return nil, err
	}
	return append([]tracker.Issue(nil), f.Issues[fullName]...), nil
}

func (f *Fake) CreateIssue(ctx context.Context, fullName string, issue tracker.NewIssue) (tracker.CreatedIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["create_issue"]++
	if err := f.CreateErr[fullName]; err != nil {
		return tracker.CreatedIssue{}, err
	}
	number := len(f.Issues[fullName]) + 1
	f.Issues[fullName] = append(f.Issues[fullName], tracker.Issue{Number: number, Title: issue.Title, State: "open"})
	f.Created = append(f.Created, issue)
	return tracker.CreatedIssue{
		Number: number,
		URL:    fmt.Sprintf("https://github.com/%s/issues/%d", fullName, number),
	}, nil
}

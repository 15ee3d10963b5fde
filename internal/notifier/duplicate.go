package notifier

import (
	"strings"

	"github.com/aleister1102/overwatch/internal/tracker"
)

// DuplicatePolicy decides whether an issue equivalent to candidate already exists.
type DuplicatePolicy interface {
	IsDuplicate(candidate string, existing []tracker.Issue) bool
}

// TitleContainmentPolicy treats titles as duplicates when either contains the other,
// ignoring case and surrounding space. Titles shorter than MinLength must match exactly.
// This is a heuristic: a reworded issue is not detected, and a short generic title can
// shadow a specific one.
type TitleContainmentPolicy struct {
	MinLength int
}

// DefaultDuplicatePolicy is used when none is configured.
func DefaultDuplicatePolicy() TitleContainmentPolicy {
	return TitleContainmentPolicy{MinLength: 16}
}

func (p TitleContainmentPolicy) IsDuplicate(candidate string, existing []tracker.Issue) bool {
	want := normalizeTitle(candidate)
	if want == "" {
		return false
	}
	for _, issue := range existing {
		have := normalizeTitle(issue.Title)
		if have == "" {
			continue
		}
		if have == want {
			return true
		}
		if len([]rune(have)) < p.MinLength || len([]rune(want)) < p.MinLength {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return true
		}
	}
	return false
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

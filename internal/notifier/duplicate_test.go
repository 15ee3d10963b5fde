package notifier

import (
	"testing"

	"github.com/aleister1102/overwatch/internal/tracker"
	"github.com/stretchr/testify/assert"
)

func TestTitleContainmentPolicy(t *testing.T) {
	policy := DefaultDuplicatePolicy()
	candidate := "🔒 Security Alert: Potential AWS Access Key Exposure in config/settings.py"

	tests := []struct {
		name     string
		existing []string
		want     bool
	}{
		{"no issues", nil, false},
		{"unrelated", []string{"Bug: crash on startup"}, false},
		{"same title different case", []string{"🔒 SECURITY ALERT: potential aws access key exposure in config/settings.py"}, true},
		{"existing contains candidate", []string{"[triaged] " + candidate + " (duplicate of #2)"}, true},
		{"candidate contains existing", []string{"Potential AWS Access Key Exposure"}, true},
		{"extra whitespace", []string{"🔒  Security Alert:   Potential AWS Access Key Exposure in config/settings.py "}, true},
		{"short generic title", []string{"security"}, false},
		{"other file", []string{"🔒 Security Alert: Potential AWS Access Key Exposure in main.go"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var issues []tracker.Issue
			for i, title := range tt.existing {
				issues = append(issues, tracker.Issue{Number: i + 1, Title: title})
			}
			assert.Equal(t, tt.want, policy.IsDuplicate(candidate, issues))
		})
	}
}

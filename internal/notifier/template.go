package notifier

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/models"
	"github.com/aleister1102/overwatch/internal/tracker"
)

const titleTemplate = `🔒 Security Alert: Potential {{.SecretType}} Exposure in {{.File}}`

const bodyTemplate = `## Security Alert

An automated security scan detected what appears to be an exposed credential in your repository.

**Details:**
- **File:** ` + "`{{.File}}`" + `
- **Line:** {{.Line}}
- **Type:** ` + "`{{.SecretType}}`" + `
- **Detection Date:** {{.DetectedAt}}

⚠️ **For security reasons, exact details are not posted publicly.**

### Recommended Actions:
1. **Rotate/invalidate the exposed credential** immediately
2. Remove the secret from your code and use environment variables
3. Review git history - the secret may exist in older commits
4. Consider using GitHub Secrets for sensitive data

### Resources:
- [GitHub Encrypted Secrets](https://docs.github.com/en/actions/security-guides/encrypted-secrets)
- [Git: Remove Sensitive Data](https://docs.github.com/en/authentication/keeping-your-account-and-data-secure/removing-sensitive-data-from-a-repository)

---
*This is an automated notification from OverWatch. If this is a false positive, please close this issue.*
`

// IssueRenderer turns a finding into the issue posted to its repository.
type IssueRenderer struct {
	title  *template.Template
	body   *template.Template
	labels []string
}

type issueData struct {
	models.Finding
	DetectedAt string
}

func NewIssueRenderer(labels []string) (*IssueRenderer, error) {
	title, err := template.New("title").Parse(titleTemplate)
	if err != nil {
		return nil, common.WrapError(err, "failed to parse issue title template")
	}
	body, err := template.New("body").Parse(bodyTemplate)
	if err != nil {
		return nil, common.WrapError(err, "failed to parse issue body template")
	}
	return &IssueRenderer{
		title:  title,
		body:   body,
		labels: append([]string(nil), labels...),
	}, nil
}

// Title renders only the title, which is also what duplicate detection compares.
func (r *IssueRenderer) Title(f models.Finding) (string, error) {
	var buf bytes.Buffer
	if err := r.title.Execute(&buf, newIssueData(f)); err != nil {
		return "", common.WrapError(err, "failed to render issue title")
	}
	return strings.TrimSpace(buf.String()), nil
}

func (r *IssueRenderer) Render(f models.Finding) (tracker.NewIssue, error) {
	title, err := r.Title(f)
	if err != nil {
		return tracker.NewIssue{}, err
	}
	var body bytes.Buffer
	if err := r.body.Execute(&body, newIssueData(f)); err != nil {
		return tracker.NewIssue{}, common.WrapError(err, "failed to render issue body")
	}
	return tracker.NewIssue{
		Title:  title,
		Body:   body.String(),
		Labels: append([]string(nil), r.labels...),
	}, nil
}

func newIssueData(f models.Finding) issueData {
	detected := f.Timestamp
	if t := f.DetectedAt(); !t.IsZero() {
		detected = models.FormatTimeOptional(t.UTC(), time.RFC1123)
	}
	return issueData{Finding: f, DetectedAt: detected}
}

package findings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aleister1102/overwatch/internal/models"
)

// ErrMalformedRecord is wrapped by every ParseFault.
var ErrMalformedRecord = errors.New("malformed record")

// ParseFault describes a store line that could not be turned into a Finding.
type ParseFault struct {
	Line   string
	Reason string
	Err    error
}

func (e *ParseFault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ParseFault) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedRecord
}

// rawFinding distinguishes absent keys from zero values.
type rawFinding struct {
	Owner      *string `json:"owner"`
	Repo       *string `json:"repo"`
	File       *string `json:"file"`
	Line       *int    `json:"line"`
	SecretType *string `json:"secret_type"`
	Timestamp  *string `json:"timestamp"`
}

// Parse decodes one JSON line. Unknown keys are ignored.
func Parse(line string) (models.Finding, error) {
	var raw rawFinding
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return models.Finding{}, &ParseFault{Line: line, Reason: "invalid json", Err: fmt.Errorf("%w: %v", ErrMalformedRecord, err)}
	}

	var missing []string
	requireString := func(name string, v *string) string {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
			return ""
		}
		return *v
	}

	f := models.Finding{
		Owner:      requireString("owner", raw.Owner),
		Repo:       requireString("repo", raw.Repo),
		File:       requireString("file", raw.File),
		SecretType: requireString("secret_type", raw.SecretType),
	}
	if raw.Line == nil {
		missing = append(missing, "line")
	} else {
		f.Line = *raw.Line
	}
	if raw.Timestamp == nil {
		missing = append(missing, "timestamp")
	} else {
		f.Timestamp = *raw.Timestamp
	}

	if len(missing) > 0 {
		return models.Finding{}, &ParseFault{Line: line, Reason: "missing required fields: " + strings.Join(missing, ", ")}
	}
	if f.Line <= 0 {
		return models.Finding{}, &ParseFault{Line: line, Reason: fmt.Sprintf("line number must be positive, got %d", f.Line)}
	}
	// Archived as a 32-bit column.
	if f.Line > math.MaxInt32 {
		return models.Finding{}, &ParseFault{Line: line, Reason: fmt.Sprintf("line number too large, got %d", f.Line)}
	}
	return f, nil
}

package findings

import (
	"errors"
	"testing"
	"time"

	"github.com/aleister1102/overwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	line := `{"owner":"acme","repo":"api","file":"config/.env","line":7,"secret_type":"AWS","timestamp":"2024-05-01T10:00:00Z","extra":true}`

	f, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, models.Finding{
		Owner:      "acme",
		Repo:       "api",
		File:       "config/.env",
		Line:       7,
		SecretType: "AWS",
		Timestamp:  "2024-05-01T10:00:00Z",
	}, f)
}

func TestParse_LargestLine(t *testing.T) {
	f, err := Parse(`{"owner":"o","repo":"r","file":"a","line":2147483647,"secret_type":"AWS","timestamp":"t"}`)
	require.NoError(t, err)
	assert.Equal(t, int32(2147483647), models.NewResolutionRecord(f, models.Success(models.ReasonCreated), "s", time.Unix(0, 0)).Line)
}

func TestParse_Faults(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"not json", `{"owner":`, "invalid json"},
		{"array", `[1,2]`, "invalid json"},
		{"missing owner", `{"repo":"api","file":"a","line":1,"secret_type":"AWS","timestamp":"t"}`, "missing required fields: owner"},
		{"empty repo", `{"owner":"o","repo":"  ","file":"a","line":1,"secret_type":"AWS","timestamp":"t"}`, "missing required fields: repo"},
		{"missing line and timestamp", `{"owner":"o","repo":"r","file":"a","secret_type":"AWS"}`, "missing required fields: line, timestamp"},
		{"zero line", `{"owner":"o","repo":"r","file":"a","line":0,"secret_type":"AWS","timestamp":"t"}`, "line number must be positive, got 0"},
		{"negative line", `{"owner":"o","repo":"r","file":"a","line":-3,"secret_type":"AWS","timestamp":"t"}`, "line number must be positive, got -3"},
		{"line beyond int32", `{"owner":"o","repo":"r","file":"a","line":2147483648,"secret_type":"AWS","timestamp":"t"}`, "line number too large, got 2147483648"},
		{"string line", `{"owner":"o","repo":"r","file":"a","line":"3","secret_type":"AWS","timestamp":"t"}`, "invalid json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)

			var fault *ParseFault
			require.True(t, errors.As(err, &fault))
			assert.Equal(t, tt.reason, fault.Reason)
			assert.Equal(t, tt.line, fault.Line)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

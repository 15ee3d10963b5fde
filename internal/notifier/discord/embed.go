// Package discord posts messages to Discord webhooks.
package discord

import (
	"fmt"

	"github.com/aleister1102/overwatch/internal/common"
)

// Discord API limits enforced before sending.
const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	maxFields            = 25
	maxFieldNameLength   = 256
	maxFieldValueLength  = 1024
	maxFooterLength      = 2048
)

// Embed represents a Discord embed object.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"` // ISO8601
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// MessagePayload is the JSON body sent to a webhook.
type MessagePayload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Validate checks e against Discord's embed limits.
func (e Embed) Validate() error {
	if len(e.Title) > maxTitleLength {
		return common.NewValidationError("title", e.Title, fmt.Sprintf("title cannot exceed %d characters", maxTitleLength))
	}
	if len(e.Description) > maxDescriptionLength {
		return common.NewValidationError("description", len(e.Description), fmt.Sprintf("description cannot exceed %d characters", maxDescriptionLength))
	}
	if len(e.Fields) > maxFields {
		return common.NewValidationError("fields", len(e.Fields), fmt.Sprintf("cannot have more than %d fields", maxFields))
	}
	for i, field := range e.Fields {
		switch {
		case field.Name == "":
			return common.NewValidationError("field_name", field.Name, fmt.Sprintf("field %d name cannot be empty", i))
		case field.Value == "":
			return common.NewValidationError("field_value", field.Value, fmt.Sprintf("field %d value cannot be empty", i))
		case len(field.Name) > maxFieldNameLength:
			return common.NewValidationError("field_name", field.Name, fmt.Sprintf("field %d name cannot exceed %d characters", i, maxFieldNameLength))
		case len(field.Value) > maxFieldValueLength:
			return common.NewValidationError("field_value", len(field.Value), fmt.Sprintf("field %d value cannot exceed %d characters", i, maxFieldValueLength))
		}
	}
	if e.Footer != nil && len(e.Footer.Text) > maxFooterLength {
		return common.NewValidationError("footer_text", len(e.Footer.Text), fmt.Sprintf("footer text cannot exceed %d characters", maxFooterLength))
	}
	return nil
}

package discord

import "time"

// EmbedBuilder helps in constructing Embed objects.
type EmbedBuilder struct {
	embed Embed
}

func NewEmbedBuilder() *EmbedBuilder {
	return &EmbedBuilder{}
}

func (eb *EmbedBuilder) WithTitle(title string) *EmbedBuilder {
	eb.embed.Title = title
	return eb
}

func (eb *EmbedBuilder) WithDescription(description string) *EmbedBuilder {
	eb.embed.Description = description
	return eb
}

func (eb *EmbedBuilder) WithTimestamp(timestamp time.Time) *EmbedBuilder {
	eb.embed.Timestamp = timestamp.UTC().Format(time.RFC3339)
	return eb
}

func (eb *EmbedBuilder) WithColor(color int) *EmbedBuilder {
	eb.embed.Color = color
	return eb
}

func (eb *EmbedBuilder) WithFooter(text string) *EmbedBuilder {
	eb.embed.Footer = &EmbedFooter{Text: text}
	return eb
}

func (eb *EmbedBuilder) AddField(name, value string, inline bool) *EmbedBuilder {
	eb.embed.Fields = append(eb.embed.Fields, EmbedField{Name: name, Value: value, Inline: inline})
	return eb
}

// Build validates and returns the embed.
func (eb *EmbedBuilder) Build() (Embed, error) {
	if err := eb.embed.Validate(); err != nil {
		return Embed{}, err
	}
	return eb.embed, nil
}

package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/aleister1102/overwatch/internal/notifier/discord"
	"github.com/rs/zerolog"
)

const (
	reportUsername = "OverWatch"

	successColor   = 0x5CB85C
	warningColor   = 0xF0AD4E
	interruptColor = 0xFD7E14
)

// SessionReport is what a finished consumer session reports to the summary webhook.
type SessionReport struct {
	SessionID   string
	Summary     Summary
	Remaining   int
	Malformed   int
	DryRun      bool
	Interrupted bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

// SummaryReporter posts a session summary to a Discord webhook.
type SummaryReporter struct {
	client     *discord.WebhookClient
	webhookURL string
	logger     zerolog.Logger
}

// NewSummaryReporter returns nil when webhookURL is empty; Report is a no-op on nil.
func NewSummaryReporter(client *discord.WebhookClient, webhookURL string, logger zerolog.Logger) *SummaryReporter {
	if webhookURL == "" {
		return nil
	}
	return &SummaryReporter{
		client:     client,
		webhookURL: webhookURL,
		logger:     logger.With().Str("module", "SummaryReporter").Logger(),
	}
}

func (r *SummaryReporter) Report(ctx context.Context, report SessionReport) error {
	if r == nil {
		return nil
	}
	payload, err := BuildSummaryPayload(report)
	if err != nil {
		return err
	}
	return r.client.Send(ctx, r.webhookURL, payload)
}

// BuildSummaryPayload renders report as a single embed.
func BuildSummaryPayload(report SessionReport) (discord.MessagePayload, error) {
	title := "✅ OverWatch session finished"
	color := successColor
	switch {
	case report.Interrupted:
		title = "⏹️ OverWatch session interrupted"
		color = interruptColor
	case report.Summary.TransientFailure > 0:
		title = "⚠️ OverWatch session finished with retries pending"
		color = warningColor
	}
	if report.DryRun {
		title += " (dry run)"
	}

	duration := report.FinishedAt.Sub(report.StartedAt).Round(time.Second)
	embed, err := discord.NewEmbedBuilder().
		WithTitle(title).
		WithDescription(fmt.Sprintf("Processed %d findings in %s.", report.Summary.Total(), duration)).
		WithColor(color).
		WithTimestamp(report.FinishedAt).
		AddField("Success", fmt.Sprint(report.Summary.Success), true).
		AddField("Permanent skip", fmt.Sprint(report.Summary.PermanentSkip), true).
		AddField("Transient failure", fmt.Sprint(report.Summary.TransientFailure), true).
		AddField("Remaining for retry", fmt.Sprint(report.Remaining), true).
		AddField("Malformed lines", fmt.Sprint(report.Malformed), true).
		WithFooter("Session " + report.SessionID).
		Build()
	if err != nil {
		return discord.MessagePayload{}, err
	}
	return discord.MessagePayload{Username: reportUsername, Embeds: []discord.Embed{embed}}, nil
}

package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/rs/zerolog"
)

const maxErrorBodyBytes = 4 << 10

// WebhookClient sends payloads to Discord webhooks.
type WebhookClient struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWebhookClient uses a 20s timeout client when httpClient is nil.
func NewWebhookClient(httpClient *http.Client, logger zerolog.Logger) *WebhookClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &WebhookClient{
		httpClient: httpClient,
		logger:     logger.With().Str("module", "DiscordWebhook").Logger(),
	}
}

// Send posts payload to webhookURL. An empty URL is a no-op.
// The URL carries the webhook token and is never logged.
func (wc *WebhookClient) Send(ctx context.Context, webhookURL string, payload MessagePayload) error {
	if webhookURL == "" {
		wc.logger.Debug().Msg("Webhook URL is empty, skipping Discord notification")
		return nil
	}
	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return common.NewValidationError("webhook_url", "<redacted>", "invalid webhook URL")
	}
	for i, embed := range payload.Embeds {
		if err := embed.Validate(); err != nil {
			return common.WrapErrorf(err, "embed %d", i)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return common.WrapError(err, "failed to marshal discord payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return common.WrapError(err, "failed to create discord request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wc.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return common.WrapError(err, "failed to send discord notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		wc.logger.Error().Int("status_code", resp.StatusCode).Str("response_body", string(respBody)).Msg("Discord notification failed")
		return common.NewError("discord notification failed with status %d", resp.StatusCode)
	}

	wc.logger.Info().Int("status_code", resp.StatusCode).Msg("Discord notification sent")
	return nil
}

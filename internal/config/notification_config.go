package config

import (
	"os"
	"strings"
)

// NotificationConfig configures the optional Discord session summary.
type NotificationConfig struct {
	// WebhookURLEnv names the environment variable holding the webhook URL; an unset variable disables the summary.
	WebhookURLEnv string `json:"webhook_url_env,omitempty" yaml:"webhook_url_env,omitempty"`
	// NotifyOnDryRun also posts summaries of dry runs.
	NotifyOnDryRun bool `json:"notify_on_dry_run" yaml:"notify_on_dry_run"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		WebhookURLEnv:  DefaultNotificationWebhookURLEnv,
		NotifyOnDryRun: false,
	}
}

// WebhookURL returns the configured webhook URL, or "" when summaries are disabled.
func (nc NotificationConfig) WebhookURL() string {
	if nc.WebhookURLEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(nc.WebhookURLEnv))
}

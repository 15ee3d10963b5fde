package config

import "time"

// TrackerConfig configures the issue tracker client.
type TrackerConfig struct {
	APIURL            string   `json:"api_url,omitempty" yaml:"api_url,omitempty" validate:"required,url"`
	TokenEnv          string   `json:"token_env,omitempty" yaml:"token_env,omitempty" validate:"required"`
	UserAgent         string   `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	Labels            []string `json:"labels,omitempty" yaml:"labels,omitempty" validate:"dive,required"`
	TimeoutSecs       int      `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"min=1,max=300"`
	RequestsPerMinute int      `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty" validate:"min=0"`
	Burst             int      `json:"burst,omitempty" yaml:"burst,omitempty" validate:"min=1"`
	IssuesPerPage     int      `json:"issues_per_page,omitempty" yaml:"issues_per_page,omitempty" validate:"min=1,max=100"`
	MaxIssuePages     int      `json:"max_issue_pages,omitempty" yaml:"max_issue_pages,omitempty" validate:"min=1"`
	EnableHTTP2       bool     `json:"enable_http2" yaml:"enable_http2"`
}

// NewDefaultTrackerConfig creates default tracker configuration
func NewDefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		APIURL:            DefaultTrackerAPIURL,
		TokenEnv:          DefaultTrackerTokenEnv,
		UserAgent:         DefaultTrackerUserAgent,
		Labels:            []string{"security"},
		TimeoutSecs:       DefaultTrackerTimeoutSecs,
		RequestsPerMinute: DefaultTrackerRequestsPerMinute,
		Burst:             DefaultTrackerBurst,
		IssuesPerPage:     DefaultTrackerIssuesPerPage,
		MaxIssuePages:     DefaultTrackerMaxIssuePages,
		EnableHTTP2:       true,
	}
}

// Timeout returns the per-request timeout.
func (tc TrackerConfig) Timeout() time.Duration {
	return time.Duration(tc.TimeoutSecs) * time.Second
}

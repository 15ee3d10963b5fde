package config

const (
	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3

	// Pipeline Defaults
	DefaultFindingsFile   = "data/findings.jsonl"
	DefaultMarkerFileName = ".scanner_done"
	DefaultPollIntervalMs = 500
	DefaultSummaryEvery   = 25

	// Tracker Defaults
	DefaultTrackerAPIURL            = "https://api.github.com"
	DefaultTrackerTokenEnv          = "GITHUB_TOKEN"
	DefaultTrackerUserAgent         = "OverWatch-Bot"
	DefaultTrackerTimeoutSecs       = 20
	DefaultTrackerRequestsPerMinute = 30
	DefaultTrackerBurst             = 5
	DefaultTrackerIssuesPerPage     = 100
	DefaultTrackerMaxIssuePages     = 3

	// Supervisor Defaults
	DefaultSupervisorScannerPath       = "build/scanner/overwatch"
	DefaultSupervisorStartupDelayMs    = 1000
	DefaultSupervisorShutdownGraceSecs = 5

	// Storage Defaults
	DefaultStorageHistoryDBPath = "data/overwatch_history.db"
	DefaultStorageArchivePath   = "data/resolutions.parquet"
	DefaultStorageEnableArchive = true

	// Notification Defaults
	DefaultNotificationWebhookURLEnv = "DISCORD_WEBHOOK_URL"

	// ConfigPathEnv overrides the config file lookup
	ConfigPathEnv = "OVERWATCH_CONFIG_PATH"
)

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultGlobalConfig(t *testing.T) {
	cfg := NewDefaultGlobalConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, DefaultFindingsFile, cfg.PipelineConfig.FindingsFile)
	assert.Equal(t, 500*time.Millisecond, cfg.PipelineConfig.PollInterval())
	assert.Equal(t, filepath.Join("data", ".scanner_done"), cfg.PipelineConfig.MarkerPath())
	assert.Equal(t, []string{"security"}, cfg.TrackerConfig.Labels)
	assert.Equal(t, time.Second, cfg.SupervisorConfig.StartupDelay())
	assert.Equal(t, 5*time.Second, cfg.SupervisorConfig.ShutdownGrace())
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadGlobalConfig_NonExistentFile(t *testing.T) {
	cfg, err := LoadGlobalConfig("/nonexistent/config.json", zerolog.Nop())

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestLoadGlobalConfig_YAMLFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	configData := `
log_config:
  log_level: debug
pipeline_config:
  findings_file: /tmp/ow/findings.jsonl
  poll_interval_ms: 250
tracker_config:
  labels: [security, automated]
supervisor_config:
  scanner_path: /opt/overwatch/scanner
`
	require.NoError(t, os.WriteFile(configFile, []byte(configData), 0644))

	cfg, err := LoadGlobalConfig(configFile, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogConfig.LogLevel)
	assert.Equal(t, "/tmp/ow/findings.jsonl", cfg.PipelineConfig.FindingsFile)
	assert.Equal(t, "/tmp/ow/.scanner_done", cfg.PipelineConfig.MarkerPath())
	assert.Equal(t, 250*time.Millisecond, cfg.PipelineConfig.PollInterval())
	assert.Equal(t, []string{"security", "automated"}, cfg.TrackerConfig.Labels)
	assert.Equal(t, "/opt/overwatch/scanner", cfg.SupervisorConfig.ScannerPath)
	// untouched sections keep their defaults
	assert.Equal(t, DefaultTrackerAPIURL, cfg.TrackerConfig.APIURL)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadGlobalConfig_JSONFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")
	configData := `{"tracker_config": {"api_url": "https://ghe.example.com/api/v3", "requests_per_minute": 10}}`
	require.NoError(t, os.WriteFile(configFile, []byte(configData), 0644))

	cfg, err := LoadGlobalConfig(configFile, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.TrackerConfig.APIURL)
	assert.Equal(t, 10, cfg.TrackerConfig.RequestsPerMinute)
}

func TestLoadGlobalConfig_InvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configFile, []byte("log_config: [unterminated"), 0644))

	_, err := LoadGlobalConfig(configFile, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal YAML")
}

func TestLoadGlobalConfig_FromEnvironment(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("pipeline_config:\n  summary_every: 3\n"), 0644))
	t.Setenv(ConfigPathEnv, configFile)

	cfg, err := LoadGlobalConfig("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.PipelineConfig.SummaryEvery)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *GlobalConfig)
		wantErr string
	}{
		{"bad log level", func(cfg *GlobalConfig) { cfg.LogConfig.LogLevel = "verbose" }, "loglevel"},
		{"bad log format", func(cfg *GlobalConfig) { cfg.LogConfig.LogFormat = "xml" }, "logformat"},
		{"poll interval too small", func(cfg *GlobalConfig) { cfg.PipelineConfig.PollIntervalMs = 1 }, "PollIntervalMs"},
		{"marker with separator", func(cfg *GlobalConfig) { cfg.PipelineConfig.MarkerFileName = "a/b" }, "MarkerFileName"},
		{"tracker url", func(cfg *GlobalConfig) { cfg.TrackerConfig.APIURL = "not a url" }, "APIURL"},
		{"empty label", func(cfg *GlobalConfig) { cfg.TrackerConfig.Labels = []string{""} }, "Labels"},
		{"archive path required", func(cfg *GlobalConfig) { cfg.StorageConfig.ArchivePath = "" }, "ArchivePath"},
		{"missing scanner", func(cfg *GlobalConfig) { cfg.SupervisorConfig.ScannerPath = "" }, "ScannerPath"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultGlobalConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.ErrorIs(t, err, common.ErrInvalidConfiguration)
		})
	}

	cfg := NewDefaultGlobalConfig()
	cfg.StorageConfig.EnableArchive = false
	cfg.StorageConfig.ArchivePath = ""
	assert.NoError(t, ValidateConfig(cfg), "archive path is optional when archiving is off")
}

func TestLoadEnvFileAndToken(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OVERWATCH_TEST_TOKEN=from-file\n"), 0600))

	tc := NewDefaultTrackerConfig()
	tc.TokenEnv = "OVERWATCH_TEST_TOKEN"

	t.Setenv("OVERWATCH_TEST_TOKEN", "")
	_, err := tc.Token()
	assert.ErrorIs(t, err, common.ErrMissingCredentials)

	require.NoError(t, os.Unsetenv("OVERWATCH_TEST_TOKEN"))
	require.NoError(t, LoadEnvFile(envFile))
	token, err := tc.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-file", token)

	t.Setenv("OVERWATCH_TEST_TOKEN", "from-env")
	require.NoError(t, LoadEnvFile(envFile))
	token, err = tc.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-env", token, "existing environment wins over the file")

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, LoadEnvFile(""))
}

func TestNotificationConfig_WebhookURL(t *testing.T) {
	nc := NewDefaultNotificationConfig()
	assert.Equal(t, "DISCORD_WEBHOOK_URL", nc.WebhookURLEnv)

	nc.WebhookURLEnv = "OVERWATCH_TEST_WEBHOOK"
	t.Setenv("OVERWATCH_TEST_WEBHOOK", "")
	assert.Empty(t, nc.WebhookURL())

	t.Setenv("OVERWATCH_TEST_WEBHOOK", " https://discord.example/api/webhooks/1/x \n")
	assert.Equal(t, "https://discord.example/api/webhooks/1/x", nc.WebhookURL())

	nc.WebhookURLEnv = ""
	assert.Empty(t, nc.WebhookURL())
}

package config

import (
	"path/filepath"
	"time"
)

// PipelineConfig configures the findings store and the consumer poll loop.
type PipelineConfig struct {
	FindingsFile   string `json:"findings_file,omitempty" yaml:"findings_file,omitempty" validate:"required"`
	MarkerFileName string `json:"marker_file_name,omitempty" yaml:"marker_file_name,omitempty" validate:"required,excludesall=/"`
	PollIntervalMs int    `json:"poll_interval_ms,omitempty" yaml:"poll_interval_ms,omitempty" validate:"min=10,max=60000"`
	// SummaryEvery logs a running summary after this many classified records; 0 disables it.
	SummaryEvery int `json:"summary_every,omitempty" yaml:"summary_every,omitempty" validate:"min=0"`
	// WatchFile wakes the poll loop early on file system events.
	WatchFile bool `json:"watch_file" yaml:"watch_file"`
}

// NewDefaultPipelineConfig creates default pipeline configuration
func NewDefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		FindingsFile:   DefaultFindingsFile,
		MarkerFileName: DefaultMarkerFileName,
		PollIntervalMs: DefaultPollIntervalMs,
		SummaryEvery:   DefaultSummaryEvery,
		WatchFile:      true,
	}
}

// PollInterval returns the poll interval as a duration.
func (pc PipelineConfig) PollInterval() time.Duration {
	return time.Duration(pc.PollIntervalMs) * time.Millisecond
}

// MarkerPath returns the completion marker path, which lives beside the findings file.
func (pc PipelineConfig) MarkerPath() string {
	return MarkerPathFor(pc.FindingsFile, pc.MarkerFileName)
}

// MarkerPathFor places markerName in the directory of findingsFile.
func MarkerPathFor(findingsFile, markerName string) string {
	return filepath.Join(filepath.Dir(findingsFile), markerName)
}

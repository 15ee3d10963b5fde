package config

import "time"

// SupervisorConfig configures how the run command launches the scanner and notifier.
type SupervisorConfig struct {
	ScannerPath string `json:"scanner_path,omitempty" yaml:"scanner_path,omitempty" validate:"required"`
	// NotifierPath defaults to the running executable when empty.
	NotifierPath      string `json:"notifier_path,omitempty" yaml:"notifier_path,omitempty"`
	StartupDelayMs    int    `json:"startup_delay_ms,omitempty" yaml:"startup_delay_ms,omitempty" validate:"min=0,max=60000"`
	ShutdownGraceSecs int    `json:"shutdown_grace_secs,omitempty" yaml:"shutdown_grace_secs,omitempty" validate:"min=1,max=300"`
	WorkDir           string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
}

// NewDefaultSupervisorConfig creates default supervisor configuration
func NewDefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		ScannerPath:       DefaultSupervisorScannerPath,
		StartupDelayMs:    DefaultSupervisorStartupDelayMs,
		ShutdownGraceSecs: DefaultSupervisorShutdownGraceSecs,
	}
}

// StartupDelay is the grace delay between producer and consumer start.
func (sc SupervisorConfig) StartupDelay() time.Duration {
	return time.Duration(sc.StartupDelayMs) * time.Millisecond
}

// ShutdownGrace bounds the wait for children after an interrupt.
func (sc SupervisorConfig) ShutdownGrace() time.Duration {
	return time.Duration(sc.ShutdownGraceSecs) * time.Second
}

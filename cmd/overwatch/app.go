package main

import (
	"os"
	"path/filepath"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/config"
	"github.com/aleister1102/overwatch/internal/logger"
	"github.com/aleister1102/overwatch/internal/supervisor"
	"github.com/rs/zerolog"
)

const (
	defaultEnvFile    = config.DefaultEnvFile
	configPathEnvHint = config.ConfigPathEnv
)

// app is the loaded configuration and logger for one command invocation.
type app struct {
	cfg *config.GlobalConfig
	// configFile is the absolute path of the file cfg came from, empty when defaults were used.
	configFile string
	logger     zerolog.Logger
}

// load reads the env file and config, validates it and builds the component logger.
// Every failure here is a configuration error and maps to exit code 1.
func (o *rootOptions) load(component string) (*app, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, withExitCode(exitFailure, err)
	}

	bootstrap := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", component).Logger().
		Level(zerolog.InfoLevel)

	cfg, err := config.LoadGlobalConfig(o.configPath, bootstrap)
	if err != nil {
		return nil, withExitCode(exitFailure, common.WrapError(err, "could not load config"))
	}
	configFile := config.GetConfigPath(o.configPath)
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			configFile = abs
		}
	}
	if o.verbose {
		cfg.LogConfig.LogLevel = "debug"
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, withExitCode(exitFailure, err)
	}

	// Children of "overwatch run" log under the parent's run ID.
	zLogger, err := logger.NewForRun(cfg.LogConfig, component, os.Getenv(supervisor.RunIDEnv))
	if err != nil {
		return nil, withExitCode(exitFailure, common.WrapError(err, "could not initialize logger"))
	}
	return &app{cfg: cfg, configFile: configFile, logger: zLogger}, nil
}

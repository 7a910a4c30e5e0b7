package main

import (
	"context"
	"log/slog"

	"FeedDigest/internal/app"
	"FeedDigest/internal/config"
	"FeedDigest/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	// newApp is swapped in tests.
	newApp func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.Application, error)
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		newApp: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.Application, error) {
			return app.New(ctx, cfg, logger, app.Options{})
		},
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return *c.configFlag
}

func (c *commandContext) loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.configPath())
	if err != nil {
		return config.Config{}, nil, err
	}
	if c.logLevelFlag != nil && *c.logLevelFlag != "" {
		cfg.Logging.Level = *c.logLevelFlag
	}
	return cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format), nil
}

// withApp loads configuration, builds the application and closes it after fn.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.Application, config.Config) error) error {
	cfg, logger, err := c.loadConfig()
	if err != nil {
		return err
	}

	application, err := c.newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()

	return fn(application, cfg)
}

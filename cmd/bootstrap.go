package cmd

import (
	"context"
	"fmt"

	"entitlement-manager/core/app"
	"entitlement-manager/core/config"
	"entitlement-manager/core/logger"

	"go.uber.org/zap"
)

// bootstrap loads configuration and wires the engine for a command.
func bootstrap(ctx context.Context) (*app.Container, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	c, err := app.Build(ctx, cfg, logg)
	if err != nil {
		_ = logg.Sync()
		return nil, err
	}
	return c, nil
}

// shutdown releases the container and flushes its logger.
func shutdown(c *app.Container) {
	if err := c.Close(); err != nil {
		c.Log.Warn("Failed to close connections", zap.Error(err))
	}
	_ = c.Log.Sync()
}

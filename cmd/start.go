package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"entitlement-manager/core/loader"
	"entitlement-manager/core/logger"
	"entitlement-manager/core/middleware/auth"
	"entitlement-manager/core/middleware/rayid"
	"entitlement-manager/feature/entitlements"
	"entitlement-manager/feature/integrity"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "entitlement-manager/docs/swagger"
)

// @title Entitlement Manager API
// @version 1.0
// @description API for reconciling billing provider purchases with user entitlements.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the entitlement server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer shutdown(c)
		zap.ReplaceGlobals(c.Log)
		cfg := c.Config

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
			BodyLimit:             cfg.Server.BodyLimit(),
		})

		mgr := loader.NewManager()
		mgr.Register(entitlements.NewFeature(c.Orchestrator, attemptLister(c), c.Log))
		mgr.Register(integrity.NewFeature(integrityTargets(c), c.Log))

		// RayID must be first so every log line, including rejected requests, is traceable.
		app.Use(rayid.New())

		app.Use(func(fc *fiber.Ctx) error {
			l := logger.WithRayID(c.Log, fc)
			l.Info("Request started",
				zap.String("method", fc.Method()),
				zap.String("path", fc.Path()),
				zap.String("ip", fc.IP()),
			)
			err := fc.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		app.Get("/swagger/*", swagger.HandlerDefault)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey, Skip: []string{"/swagger"}}))

		loaded, err := mgr.LoadAll(app)
		if err != nil {
			return err
		}
		c.Log.Info("Features loaded", zap.Strings("features", loaded))

		errCh := make(chan error, 1)
		go func() {
			c.Log.Info("Starting server", zap.String("address", cfg.Server.Address()))
			errCh <- app.Listen(cfg.Server.Address())
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		c.Log.Info("Shutting down server...")
		return app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout())
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}

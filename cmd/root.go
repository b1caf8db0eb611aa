package cmd

import (
	"fmt"
	"os"

	"entitlement-manager/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "entitlement-manager",
	Short: "Entitlement Reconciliation Service",
	Long: `Entitlement Manager reconciles billing provider purchases with locally stored
entitlements and drives acknowledge/consume so every purchase is finalized exactly once.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console encoding and debug level give readable CLI errors with ISO8601 timestamps.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

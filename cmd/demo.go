package cmd

import (
	"errors"
	"fmt"

	"entitlement-manager/core/provider"
	"entitlement-manager/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var demoUser string

// demoCmd drives the in-memory provider through a purchase lifecycle.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a purchase lifecycle against the in-memory provider",
	Long: `Buys every catalog product for a user, prints the snapshot, cancels the
subscriptions and runs a restore sync so the lapse shows up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer shutdown(c)

		if c.Market == nil {
			return fmt.Errorf("demo needs provider backend %q, configured %q", provider.BackendMemory, c.Config.Provider.Backend)
		}

		for _, p := range c.Catalog.Products() {
			err := c.Orchestrator.LaunchPurchase(ctx, demoUser, p.ID)
			switch {
			case err == nil:
				c.Log.Info("Purchased", zap.String("product_id", p.ID), zap.String("kind", string(p.Kind)))
			case errors.Is(err, reconcile.ErrNotPurchasable):
				c.Log.Info("Already owned", zap.String("product_id", p.ID))
			default:
				return fmt.Errorf("failed to purchase %s: %w", p.ID, err)
			}
		}

		snap, err := c.Orchestrator.CurrentSnapshot(ctx, demoUser)
		if err != nil {
			return err
		}
		printSnapshot(snap)

		for _, p := range c.Catalog.Products() {
			if p.Kind == reconcile.KindSubscription {
				c.Market.Cancel(demoUser, p.ID)
				c.Log.Info("Cancelled subscription", zap.String("product_id", p.ID))
			}
		}

		report, err := c.Orchestrator.Sync(ctx, demoUser, reconcile.TriggerRestore)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		printPassReport(c.Log, report)
		return nil
	},
}

func init() {
	demoCmd.Flags().StringVar(&demoUser, "user", "demo-user", "User ID")
	RootCmd.AddCommand(demoCmd)
}

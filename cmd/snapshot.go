package cmd

import (
	"encoding/json"
	"fmt"

	"entitlement-manager/core/reconcile"

	"github.com/spf13/cobra"
)

var (
	snapshotUser string
	snapshotJSON bool
)

// snapshotCmd prints a user's entitlements.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show the entitlement snapshot of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer shutdown(c)

		snap, err := c.Orchestrator.CurrentSnapshot(ctx, snapshotUser)
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		if snapshotJSON {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}
		printSnapshot(snap)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotUser, "user", "", "User ID")
	_ = snapshotCmd.MarkFlagRequired("user")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Output JSON")
	RootCmd.AddCommand(snapshotCmd)
}

func printSnapshot(snap *reconcile.Snapshot) {
	fmt.Printf("\n=== Entitlements of %s ===\n", snap.UserID)
	for _, e := range snap.Entitlements {
		line := fmt.Sprintf("%-24s %-13s %-9s", e.ProductID, e.Kind, e.Status)
		if e.Purchasable {
			line += " purchasable"
		}
		if e.RetryAdvised {
			line += " retry-advised"
		}
		fmt.Println(line)
	}
}

package cmd

import (
	"fmt"

	"entitlement-manager/core/config"
	"entitlement-manager/core/reconcile"

	"github.com/spf13/cobra"
)

// catalogCmd lists the configured products.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the products of the catalog file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		catalog, err := reconcile.LoadCatalog(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		fmt.Printf("\n=== Catalog (%s) ===\n", cfg.Catalog.Path)
		for _, p := range catalog.Products() {
			fmt.Printf("%-24s %-13s %s\n", p.ID, p.Kind, p.Kind.ProductType())
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(catalogCmd)
}

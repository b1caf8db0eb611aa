package cmd

import (
	"context"
	"errors"

	"entitlement-manager/core/app"
	"entitlement-manager/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fixFlag bool

// integrityCmd runs every integrity check.
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check the storage, database, catalog and redis dependencies",
	Long:  `Checks that the dependencies of the configured backends are reachable and correctly set up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIntegrity(cmd.Context(), func(ctx context.Context, c *app.Container, svc *integrity.Service) error {
			for name, result := range svc.RunAll(ctx) {
				c.Log.Info("Integrity check", zap.String("check", name), zap.Any("result", result))
			}
			return nil
		})
	},
}

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Check (and with --fix create) the entitlement bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIntegrity(cmd.Context(), func(ctx context.Context, c *app.Container, svc *integrity.Service) error {
			report, err := svc.CheckBucket(ctx)
			if err != nil {
				return err
			}
			if report.Exists {
				c.Log.Info("Bucket is present.", zap.String("bucket", report.Bucket))
				return nil
			}
			c.Log.Warn("Bucket is missing", zap.String("bucket", report.Bucket))
			if !fixFlag {
				c.Log.Info("Run with --fix to create the bucket.")
				return nil
			}
			if _, err := svc.FixBucket(ctx); err != nil {
				return err
			}
			c.Log.Info("Bucket created successfully.")
			return nil
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check (and with --fix migrate) the entitlement tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIntegrity(cmd.Context(), func(ctx context.Context, c *app.Container, svc *integrity.Service) error {
			report, err := svc.CheckSchema(ctx)
			if err != nil {
				return err
			}
			if report.Matched {
				c.Log.Info("Schema matches expected definition.", zap.String("dialect", report.Dialect))
				return nil
			}
			for table, tbl := range report.Tables {
				if tbl.Status == "ok" {
					continue
				}
				c.Log.Warn("Table drift",
					zap.String("table", table),
					zap.Bool("missing", tbl.Missing),
					zap.Strings("missing_columns", tbl.MissingColumns),
					zap.Strings("type_mismatches", tbl.TypeMismatches),
				)
			}
			for _, e := range report.Errors {
				c.Log.Error("Inspection Error", zap.String("error", e))
			}
			if !fixFlag {
				c.Log.Info("Run with --fix to migrate the tables.")
				return nil
			}
			if err := svc.FixSchema(ctx); err != nil {
				return err
			}
			c.Log.Info("Schema migrated successfully.")
			return nil
		})
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(bucketCmd, schemaCmd)

	bucketCmd.Flags().BoolVar(&fixFlag, "fix", false, "Create the missing bucket")
	schemaCmd.Flags().BoolVar(&fixFlag, "fix", false, "Migrate drifted tables")
}

func withIntegrity(ctx context.Context, run func(ctx context.Context, c *app.Container, svc *integrity.Service) error) error {
	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdown(c)

	svc := integrity.NewFeature(integrityTargets(c), c.Log).Service()
	err = run(ctx, c, svc)
	if errors.Is(err, integrity.ErrNotConfigured) {
		c.Log.Warn("Check skipped: backend not in use")
		return nil
	}
	return err
}

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"entitlement-manager/core/reconcile"
	"entitlement-manager/feature/entitlements"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	userFlag    string
	batchFile   string
	passTrigger string
	syncTrigger string
	dryRunPass  bool
	yesConfirm  bool
)

// reconcileCmd is the parent command for all reconcile operations.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile purchases with stored entitlements",
	Long: `Reconcile billing provider purchases with the entitlement store.
Passes persist grants before finalizing them, and finalize each token at most once.`,
}

// passCmd runs a pass over a batch read from a file.
var passCmd = &cobra.Command{
	Use:   "pass",
	Short: "Run a reconciliation pass over a batch file",
	Long: `Run a reconciliation pass over purchase reports read from a JSON file:

  {"reports": [{"product_ids": ["remove_ads"], "purchase_token": "...", "state": "purchased"}],
   "partial": false}

The batch is taken as every purchase of the user, so active subscriptions
missing from it lapse. Set "partial": true to only grant and finalize.

Examples:
  # Show the planned effects only
  reconcile pass --user u1 --batch batch.json --dry-run

  # Apply with interactive confirmation
  reconcile pass --user u1 --batch batch.json

  # Apply non-interactively
  reconcile pass --user u1 --batch batch.json --yes`,
	RunE: runPass,
}

// syncCmd re-queries the provider.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Query the provider and run a full pass",
	RunE:  runSync,
}

func init() {
	reconcileCmd.AddCommand(passCmd, syncCmd)

	reconcileCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User ID")
	_ = reconcileCmd.MarkPersistentFlagRequired("user")

	passCmd.Flags().StringVar(&batchFile, "batch", "", "Path to a JSON batch file")
	_ = passCmd.MarkFlagRequired("batch")
	passCmd.Flags().BoolVar(&dryRunPass, "dry-run", false, "Plan only, apply nothing")
	passCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm applying the plan (non-interactive)")
	passCmd.Flags().StringVar(&passTrigger, "trigger", string(reconcile.TriggerManual), "Pass trigger")

	syncCmd.Flags().StringVar(&syncTrigger, "trigger", string(reconcile.TriggerRestore), "Pass trigger (connected, resume, restore, manual)")

	RootCmd.AddCommand(reconcileCmd)
}

func runPass(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	batch, err := readBatch(batchFile)
	if err != nil {
		return err
	}
	trigger, ok := reconcile.ParseTrigger(passTrigger)
	if !ok {
		return fmt.Errorf("unknown trigger %q", passTrigger)
	}

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdown(c)
	l := c.Log.With(zap.String("user_id", userFlag))

	l.Info("Planning reconciliation...")
	plan, err := c.Orchestrator.Plan(ctx, userFlag, batch)
	if err != nil {
		return fmt.Errorf("failed to plan reconciliation: %w", err)
	}
	printPlan(l, plan)

	if dryRunPass {
		l.Info("Dry-run mode: No changes were made.")
		return nil
	}
	if !plan.HasWork() {
		l.Info("No effects required.")
		return nil
	}
	if !confirmApply() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	report, err := c.Orchestrator.RunPass(ctx, userFlag, trigger, batch)
	if err != nil {
		return fmt.Errorf("reconciliation pass failed: %w", err)
	}
	printPassReport(l, report)
	return report.Err()
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	trigger, ok := reconcile.ParseTrigger(syncTrigger)
	if !ok {
		return fmt.Errorf("unknown trigger %q", syncTrigger)
	}

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdown(c)
	l := c.Log.With(zap.String("user_id", userFlag))

	report, err := c.Orchestrator.Sync(ctx, userFlag, trigger)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	printPassReport(l, report)
	return report.Err()
}

func readBatch(path string) (reconcile.Batch, error) {
	var batch reconcile.Batch
	data, err := os.ReadFile(path)
	if err != nil {
		return batch, fmt.Errorf("failed to read batch: %w", err)
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return batch, fmt.Errorf("failed to parse batch %s: %w", path, err)
	}
	return batch, entitlements.ValidateBatch(batch)
}

// printPlan prints a formatted plan using logger.
func printPlan(l *zap.Logger, plan *reconcile.Plan) {
	s := plan.Summary
	l.Info("Reconciliation plan",
		zap.Int("reports", s.Reports),
		zap.Int("persists", s.Persists),
		zap.Int("acknowledges", s.Acknowledges),
		zap.Int("consumes", s.Consumes),
		zap.Int("lapses", s.Lapses),
		zap.Int("noops", s.Noops),
		zap.Int("unknown_products", s.UnknownProducts),
		zap.Strings("pending", plan.Pending),
	)

	// Show a sample of effects (max 5 for logger)
	effects := plan.Effects()
	maxShow := min(5, len(effects))
	for _, eff := range effects[:maxShow] {
		l.Info("Planned effect",
			zap.String("type", string(eff.Type)),
			zap.String("product_id", eff.ProductID),
			zap.String("token", eff.Token),
			zap.String("reason", eff.Reason),
		)
	}
	if len(effects) > maxShow {
		l.Info("Additional effects not shown", zap.Int("count", len(effects)-maxShow))
	}
	for _, e := range plan.Errors {
		l.Warn("Plan error", zap.Error(e))
	}
}

func printPassReport(l *zap.Logger, report *reconcile.PassReport) {
	l.Info("Pass completed",
		zap.String("trigger", string(report.Trigger)),
		zap.Bool("coalesced", report.Coalesced),
		zap.Int("applied", report.Count(reconcile.OutcomeApplied)),
		zap.Int("already_finalized", report.Count(reconcile.OutcomeAlreadyFinalized)),
		zap.Int("failed", report.Count(reconcile.OutcomeFailed)),
		zap.Int("rejected", report.Count(reconcile.OutcomeRejected)),
		zap.Int("skipped", report.Count(reconcile.OutcomeSkipped)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	if report.Snapshot != nil {
		printSnapshot(report.Snapshot)
	}
}

// confirmApply prompts the user for confirmation or uses --yes flag.
func confirmApply() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to apply the plan (finalization cannot be undone): ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}

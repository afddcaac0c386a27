package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/audit"
	"github.com/phaserhq/phaser/internal/event"
	"github.com/phaserhq/phaser/internal/sandbox"
	"github.com/phaserhq/phaser/internal/ui"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dry-run audits in a rollback sandbox",
}

var simulateRunCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Run the planned audit phases in a sandbox and roll back",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSimulateRun,
}

var simulateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active sandbox context",
	RunE:  runSimulateStatus,
}

var simulateRollbackCmd = &cobra.Command{
	Use:   "rollback [path]",
	Short: "Restore the pre-audit tree and end the sandbox",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSimulateRollback,
}

var simulateCommitCmd = &cobra.Command{
	Use:   "commit [path]",
	Short: "Keep the audit's changes and end the sandbox",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSimulateCommit,
}

func init() {
	simulateRunCmd.Flags().String("audit", "", "audit id (required)")
	simulateRunCmd.Flags().Bool("fail-fast", false, "stop at the first failing phase")
	_ = simulateRunCmd.MarkFlagRequired("audit")

	simulateCmd.AddCommand(simulateRunCmd)
	simulateCmd.AddCommand(simulateStatusCmd)
	simulateCmd.AddCommand(simulateRollbackCmd)
	simulateCmd.AddCommand(simulateCommitCmd)
	rootCmd.AddCommand(simulateCmd)
}

func runSimulateRun(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	auditID, _ := cmd.Flags().GetString("audit")
	failFast, _ := cmd.Flags().GetBool("fail-fast")

	plan, err := audit.LoadPlan(root)
	if err != nil {
		return err
	}
	cfg := &audit.Config{
		Root:     root,
		AuditID:  auditID,
		Mode:     audit.ModeSandboxed,
		FailFast: failFast,
	}
	if plan != nil {
		cfg.Slug = plan.Slug
		cfg.Phases = plan.Phases
	}

	o := audit.NewOrchestrator(s, event.NewLog(s))
	result, err := o.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	p := ui.New()
	for _, pr := range result.Phases {
		if pr.Success {
			p.Success("phase %d (%s)", pr.Phase, pr.Duration.Round(time.Millisecond))
		} else {
			p.Error("phase %d: %s", pr.Phase, pr.Error)
		}
	}
	if result.ChangeSummary != "" {
		p.Dim("%s", result.ChangeSummary)
	}
	if !result.Success() {
		return fmt.Errorf("simulation failed")
	}
	return nil
}

func runSimulateStatus(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	c, err := sandbox.LoadContext(s)
	if err != nil {
		return err
	}
	p := ui.New()
	if c == nil || !c.Active {
		p.Info("No active sandbox")
		return nil
	}
	p.Header("Active sandbox")
	p.KV([][2]string{
		{"audit", c.AuditID},
		{"root", c.Root},
		{"branch", c.Branch},
		{"started", c.StartedAt},
		{"stash", c.StashRef},
		{"tracked", fmt.Sprintf("%d created, %d modified, %d deleted",
			len(c.Created), len(c.Modified), len(c.Deleted))},
	})
	return nil
}

func runSimulateRollback(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	engine := sandbox.NewEngine(s, root)
	result, err := engine.Rollback(cmd.Context())
	if err != nil {
		return err
	}
	p := ui.New()
	p.Success("rolled back %d path(s)", result.Restored)
	for _, f := range result.Failures {
		p.Warn("%s: %v", f.Path, f.Err)
	}
	if !result.OK() {
		return fmt.Errorf("%d path(s) could not be restored", len(result.Failures))
	}
	return nil
}

func runSimulateCommit(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	engine := sandbox.NewEngine(s, root)
	if err := engine.Commit(cmd.Context()); err != nil {
		return err
	}
	ui.New().Success("sandbox changes kept")
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/audit"
	"github.com/phaserhq/phaser/internal/event"
	"github.com/phaserhq/phaser/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Run an audit's planned phases",
	Long: "Executes the phases from phaser.toml in the chosen mode: direct edits\n" +
		"the tree in place, sandboxed rolls everything back, branched commits each\n" +
		"phase on its own chained branch.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("audit", "", "audit id (required)")
	runCmd.Flags().String("mode", string(audit.ModeDirect), "execution mode: direct, sandboxed, or branched")
	runCmd.Flags().Bool("fail-fast", false, "stop at the first failing phase")
	_ = runCmd.MarkFlagRequired("audit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	auditID, _ := cmd.Flags().GetString("audit")
	mode, _ := cmd.Flags().GetString("mode")
	failFast, _ := cmd.Flags().GetBool("fail-fast")

	plan, err := audit.LoadPlan(root)
	if err != nil {
		return err
	}
	cfg := &audit.Config{
		Root:     root,
		AuditID:  auditID,
		Mode:     audit.Mode(mode),
		FailFast: failFast,
	}
	if plan != nil {
		cfg.Slug = plan.Slug
		cfg.Phases = plan.Phases
		if mode == "" && plan.Mode != "" {
			cfg.Mode = audit.Mode(plan.Mode)
		}
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
		return fmt.Errorf("audit run failed")
	}
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/branch"
	"github.com/phaserhq/phaser/internal/ui"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "Run audits as chained per-phase git branches",
}

var branchesEnableCmd = &cobra.Command{
	Use:   "enable [path]",
	Short: "Enter branch mode for an audit",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBranchesEnable,
}

var branchesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active branch context",
	RunE:  runBranchesStatus,
}

var branchesMergeCmd = &cobra.Command{
	Use:   "merge [path]",
	Short: "Land the phase series on the base branch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBranchesMerge,
}

var branchesCleanupCmd = &cobra.Command{
	Use:   "cleanup [path]",
	Short: "Delete phase branches and leave branch mode",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBranchesCleanup,
}

func init() {
	branchesEnableCmd.Flags().String("audit", "", "audit id (required)")
	branchesEnableCmd.Flags().String("slug", "", "audit slug used in branch names (default: audit id)")
	branchesEnableCmd.Flags().String("base", "", "base branch (default: current)")
	_ = branchesEnableCmd.MarkFlagRequired("audit")

	branchesMergeCmd.Flags().String("strategy", "", "merge strategy: squash, rebase, or merge (default: config)")
	branchesMergeCmd.Flags().String("target", "", "target branch (default: base)")
	branchesMergeCmd.Flags().String("message", "", "merge commit message")

	branchesCmd.AddCommand(branchesEnableCmd)
	branchesCmd.AddCommand(branchesStatusCmd)
	branchesCmd.AddCommand(branchesMergeCmd)
	branchesCmd.AddCommand(branchesCleanupCmd)
	rootCmd.AddCommand(branchesCmd)
}

func runBranchesEnable(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	auditID, _ := cmd.Flags().GetString("audit")
	slug, _ := cmd.Flags().GetString("slug")
	base, _ := cmd.Flags().GetString("base")

	engine := branch.NewEngine(s, root)
	c, err := engine.Begin(cmd.Context(), auditID, slug, base)
	if err != nil {
		return err
	}
	ui.New().Success("branch mode active for audit %s (base %s)", c.AuditID, c.Base)
	return nil
}

func runBranchesStatus(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	c, err := branch.LoadContext(s)
	if err != nil {
		return err
	}
	p := ui.New()
	if c == nil || !c.Active {
		p.Info("Branch mode is not active")
		return nil
	}
	p.Header("Branch mode")
	p.KV([][2]string{
		{"audit", c.AuditID},
		{"slug", c.Slug},
		{"base", c.Base},
		{"started", c.StartedAt},
	})
	for _, info := range c.Branches {
		state := "open"
		if info.Merged {
			state = "merged"
		}
		sha := info.CommitSHA
		if sha == "" {
			sha = "no commit"
		} else if len(sha) > 8 {
			sha = sha[:8]
		}
		p.Info("  %s  %s  [%s]", info.Name, sha, state)
	}
	return nil
}

func runBranchesMerge(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	strategyFlag, _ := cmd.Flags().GetString("strategy")
	if strategyFlag == "" {
		cfg, err := s.LoadConfig()
		if err != nil {
			return err
		}
		strategyFlag = configString(cfg, "branches", "merge_strategy")
	}
	target, _ := cmd.Flags().GetString("target")
	message, _ := cmd.Flags().GetString("message")

	engine := branch.NewEngine(s, root)
	strategy := branch.ParseStrategy(strategyFlag)
	if err := engine.MergeAll(cmd.Context(), strategy, target, message); err != nil {
		return err
	}
	ui.New().Success("merged phase series (%s)", strategy)
	return nil
}

func runBranchesCleanup(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	engine := branch.NewEngine(s, root)
	deleted, err := engine.Cleanup(cmd.Context())
	if err != nil {
		return err
	}
	if err := engine.End(); err != nil {
		return err
	}
	ui.New().Success("deleted %d branch(es), branch mode ended", deleted)
	return nil
}

// configString reads a nested string from the loaded config tree.
func configString(cfg map[string]any, keys ...string) string {
	node := any(cfg)
	for _, key := range keys {
		m, ok := node.(map[string]any)
		if !ok {
			return ""
		}
		node = m[key]
	}
	s, _ := node.(string)
	return s
}

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/contract"
	"github.com/phaserhq/phaser/internal/store"
	"github.com/phaserhq/phaser/internal/ui"
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Manage and check audit contracts",
}

var contractsCreateCmd = &cobra.Command{
	Use:   "create <rule-id>",
	Short: "Create a contract rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractsCreate,
}

var contractsCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Check a single contract against the tree",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runContractsCheck,
}

var contractsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded contracts with precedence applied",
	RunE:  runContractsList,
}

var contractsEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a contract",
	Args:  cobra.ExactArgs(1),
	RunE:  makeSetEnabled(true),
}

var contractsDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a contract",
	Args:  cobra.ExactArgs(1),
	RunE:  makeSetEnabled(false),
}

func init() {
	contractsCreateCmd.Flags().String("type", "", "rule type: forbid_pattern, require_pattern, file_exists, file_not_exists, file_contains, file_not_contains")
	contractsCreateCmd.Flags().String("severity", string(contract.SeverityError), "severity: error or warning")
	contractsCreateCmd.Flags().String("pattern", "", "regex (pattern rules) or literal (contains rules)")
	contractsCreateCmd.Flags().String("glob", "", "file glob the rule applies to")
	contractsCreateCmd.Flags().String("message", "", "message shown on violation")
	contractsCreateCmd.Flags().String("rationale", "", "why the rule exists")
	contractsCreateCmd.Flags().String("audit", "", "source audit id")
	_ = contractsCreateCmd.MarkFlagRequired("type")
	_ = contractsCreateCmd.MarkFlagRequired("glob")
	_ = contractsCreateCmd.MarkFlagRequired("message")

	contractsCheckCmd.Flags().String("rule", "", "rule id to check (required)")
	_ = contractsCheckCmd.MarkFlagRequired("rule")

	contractsCmd.AddCommand(contractsCreateCmd)
	contractsCmd.AddCommand(contractsCheckCmd)
	contractsCmd.AddCommand(contractsListCmd)
	contractsCmd.AddCommand(contractsEnableCmd)
	contractsCmd.AddCommand(contractsDisableCmd)
	rootCmd.AddCommand(contractsCmd)
}

func runContractsCreate(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}

	ruleType, _ := cmd.Flags().GetString("type")
	severity, _ := cmd.Flags().GetString("severity")
	pattern, _ := cmd.Flags().GetString("pattern")
	glob, _ := cmd.Flags().GetString("glob")
	message, _ := cmd.Flags().GetString("message")
	rationale, _ := cmd.Flags().GetString("rationale")
	auditID, _ := cmd.Flags().GetString("audit")

	c := &contract.Contract{
		Enabled:     true,
		AuditSource: contract.AuditSource{ID: auditID},
		Rule: contract.Rule{
			ID:        args[0],
			Type:      contract.RuleType(ruleType),
			Severity:  contract.Severity(severity),
			Pattern:   pattern,
			FileGlob:  glob,
			Message:   message,
			Rationale: rationale,
		},
	}
	dir := s.Path(store.ContractsDir)
	if err := contract.Save(dir, c); err != nil {
		return err
	}
	ui.New().Success("created contract %s in %s", args[0], dir)
	return nil
}

func runContractsCheck(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	ruleID, _ := cmd.Flags().GetString("rule")

	loaded := contract.Load(contract.SourceDirs(root)...)
	c := loaded.Get(ruleID)
	if c == nil {
		return fmt.Errorf("contract %s not found", ruleID)
	}

	res, err := contract.NewChecker(root).Check(c)
	if err != nil {
		return err
	}
	p := ui.New()
	p.CheckResults([]*contract.CheckResult{res})
	if !res.Passed {
		return fmt.Errorf("%d violation(s)", len(res.Violations))
	}
	return nil
}

func runContractsList(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(nil)
	if err != nil {
		return err
	}
	loaded := contract.Load(contract.SourceDirs(root)...)

	p := ui.New()
	for _, warning := range loaded.Warnings {
		p.Warn("%s", warning)
	}
	if len(loaded.Contracts) == 0 {
		p.Info("No contracts loaded")
		return nil
	}
	for _, c := range loaded.Contracts {
		state := "enabled"
		if !c.Enabled {
			state = "disabled"
		}
		p.Info("%-24s %-18s %-8s %s  [%s]", c.Rule.ID, c.Rule.Type, c.Rule.Severity, c.Rule.FileGlob, state)
	}
	return nil
}

// makeSetEnabled flips the enabled flag in whichever source directory
// holds the rule, project first.
func makeSetEnabled(enabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(nil)
		if err != nil {
			return err
		}
		ruleID := args[0]

		var lastErr error
		for _, dir := range contract.SourceDirs(root) {
			if _, statErr := contract.LoadFile(filepath.Join(dir, ruleID+".yaml")); statErr != nil {
				lastErr = statErr
				continue
			}
			if err := contract.SetEnabled(dir, ruleID, enabled); err != nil {
				return err
			}
			verb := "enabled"
			if !enabled {
				verb = "disabled"
			}
			ui.New().Success("%s contract %s", verb, ruleID)
			return nil
		}
		return fmt.Errorf("contract %s not found: %v", ruleID, lastErr)
	}
}

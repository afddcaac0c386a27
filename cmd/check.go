package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/contract"
	"github.com/phaserhq/phaser/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Run every enabled contract against the tree",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Bool("fail-on-error", false, "exit nonzero when any error-severity contract fails")
	checkCmd.Flags().String("format", "text", "output format: text or json")
	checkCmd.Flags().Bool("fail-fast", false, "stop at the first failing contract")
	checkCmd.Flags().Bool("watch", false, "re-run when contract files change")
	rootCmd.AddCommand(checkCmd)
}

// checkReport is the JSON shape of one check run.
type checkReport struct {
	Passed     int                  `json:"passed"`
	Failed     int                  `json:"failed"`
	Violations []contract.Violation `json:"violations"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	failFast, _ := cmd.Flags().GetBool("fail-fast")
	watch, _ := cmd.Flags().GetBool("watch")

	if !watch {
		return runCheckOnce(cmd, root, failFast)
	}

	dirs := contract.SourceDirs(root)
	w, err := contract.NewWatcher(dirs...)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	p := ui.New()
	_ = runCheckOnce(cmd, root, failFast)
	p.Dim("watching %d contract directories; ctrl-c to stop", len(dirs))
	for {
		select {
		case change := <-w.Changes:
			p.Dim("contract %s changed, re-checking", change.RuleID)
			_ = runCheckOnce(cmd, root, failFast)
		case <-sig:
			return nil
		}
	}
}

func runCheckOnce(cmd *cobra.Command, root string, failFast bool) error {
	loaded := contract.Load(contract.SourceDirs(root)...)
	results, err := contract.NewChecker(root).CheckAll(loaded.Enabled(), failFast)
	if err != nil {
		return err
	}

	report := checkReport{Violations: []contract.Violation{}}
	errorFailures := 0
	for _, res := range results {
		if res.Passed {
			report.Passed++
			continue
		}
		report.Failed++
		report.Violations = append(report.Violations, res.Violations...)
		if res.Contract.Rule.Severity == contract.SeverityError {
			errorFailures++
		}
	}

	if format, _ := cmd.Flags().GetString("format"); format == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		p := ui.New()
		for _, warning := range loaded.Warnings {
			p.Warn("%s", warning)
		}
		p.CheckResults(results)
		p.Dim("%d passed, %d failed", report.Passed, report.Failed)
	}

	if failOnError, _ := cmd.Flags().GetBool("fail-on-error"); failOnError && errorFailures > 0 {
		return fmt.Errorf("%d error-severity contract(s) failed", errorFailures)
	}
	return nil
}

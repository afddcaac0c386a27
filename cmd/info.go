package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/branch"
	"github.com/phaserhq/phaser/internal/contract"
	"github.com/phaserhq/phaser/internal/sandbox"
	"github.com/phaserhq/phaser/internal/store"
	"github.com/phaserhq/phaser/internal/ui"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the store location and what it holds",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(nil)
	if err != nil {
		return err
	}

	audits, err := s.ListAudits("")
	if err != nil {
		return err
	}
	events, err := s.QueryEvents(store.EventFilter{})
	if err != nil {
		return err
	}
	loaded := contract.Load(contract.SourceDirs(root)...)

	sandboxState := "inactive"
	if c, err := sandbox.LoadContext(s); err == nil && c != nil && c.Active {
		sandboxState = fmt.Sprintf("active (audit %s)", c.AuditID)
	}
	branchState := "inactive"
	if c, err := branch.LoadContext(s); err == nil && c != nil && c.Active {
		branchState = fmt.Sprintf("active (audit %s, %d branches)", c.AuditID, len(c.Branches))
	}

	p := ui.New()
	p.Header("Phaser store")
	p.KV([][2]string{
		{"root", s.Root},
		{"audits", fmt.Sprintf("%d", len(audits))},
		{"events", fmt.Sprintf("%d", len(events))},
		{"contracts", fmt.Sprintf("%d", len(loaded.Contracts))},
		{"sandbox", sandboxState},
		{"branch mode", branchState},
	})
	for _, warning := range loaded.Warnings {
		p.Warn("%s", warning)
	}
	return nil
}

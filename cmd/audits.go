package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/event"
	"github.com/phaserhq/phaser/internal/store"
	"github.com/phaserhq/phaser/internal/ui"
)

var auditsCmd = &cobra.Command{
	Use:   "audits",
	Short: "Manage audit records",
}

var auditsCreateCmd = &cobra.Command{
	Use:   "create <slug>",
	Short: "Create a pending audit record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditsCreate,
}

var auditsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records",
	RunE:  runAuditsList,
}

func init() {
	auditsCreateCmd.Flags().String("project", "", "project name (required)")
	_ = auditsCreateCmd.MarkFlagRequired("project")

	auditsListCmd.Flags().String("project", "", "filter by project name")

	auditsCmd.AddCommand(auditsCreateCmd)
	auditsCmd.AddCommand(auditsListCmd)
	rootCmd.AddCommand(auditsCmd)
}

func runAuditsCreate(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	project, _ := cmd.Flags().GetString("project")

	a := &store.Audit{
		Project: project,
		Slug:    args[0],
		Date:    time.Now().UTC().Format("2006-01-02"),
		Status:  store.StatusPending,
	}
	if err := s.InsertAudit(a); err != nil {
		return err
	}
	if _, err := event.NewLog(s).Emit(event.AuditCreated, a.ID, 0, map[string]any{
		"slug":    a.Slug,
		"project": a.Project,
	}); err != nil {
		return err
	}
	ui.New().Success("created audit %s (%s)", a.ID, a.Slug)
	return nil
}

func runAuditsList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	project, _ := cmd.Flags().GetString("project")

	audits, err := s.ListAudits(project)
	if err != nil {
		return err
	}
	p := ui.New()
	if len(audits) == 0 {
		p.Info("No audits recorded")
		return nil
	}
	for _, a := range audits {
		p.Info("%s  %-12s  %-20s  %s  %s", a.ID, a.Status, a.Slug, a.Project, a.Date)
	}
	return nil
}

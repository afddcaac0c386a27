package cmd

import (
	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/manifest"
	"github.com/phaserhq/phaser/internal/ui"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest [path]",
	Short: "Capture a tree manifest and print its summary",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runManifest,
}

func init() {
	manifestCmd.Flags().String("audit", "", "save the manifest under this audit id")
	manifestCmd.Flags().String("stage", manifest.StagePre, "snapshot stage when saving: pre or post")
	manifestCmd.Flags().String("exclude", "", "comma-separated extra directory names to skip")
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	excludes := manifest.AuditExcludes()
	if extra, _ := cmd.Flags().GetString("exclude"); extra != "" {
		for name := range manifest.ExcludesFromList(extra) {
			excludes[name] = true
		}
	}

	m, err := manifest.Capture(root, excludes)
	if err != nil {
		return err
	}

	p := ui.New()
	p.Info("%s", m.Summary())

	if auditID, _ := cmd.Flags().GetString("audit"); auditID != "" {
		stage, _ := cmd.Flags().GetString("stage")
		s, err := openStore()
		if err != nil {
			return err
		}
		if err := manifest.Save(s, auditID, stage, m); err != nil {
			return err
		}
		p.Success("saved %s manifest for audit %s", stage, auditID)
	}
	return nil
}

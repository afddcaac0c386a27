package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/event"
	"github.com/phaserhq/phaser/internal/manifest"
	"github.com/phaserhq/phaser/internal/ui"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Capture and compare project tree snapshots",
}

var diffCaptureCmd = &cobra.Command{
	Use:   "capture [path]",
	Short: "Capture a manifest of the tree for an audit stage",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiffCapture,
}

var diffCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare an audit's pre and post manifests",
	RunE:  runDiffCompare,
}

func init() {
	diffCaptureCmd.Flags().String("audit", "", "audit id the snapshot belongs to (required)")
	diffCaptureCmd.Flags().String("stage", manifest.StagePre, "snapshot stage: pre or post")
	diffCaptureCmd.Flags().String("exclude", "", "comma-separated extra directory names to skip")

	diffCompareCmd.Flags().String("audit", "", "audit id to compare (required)")
	diffCompareCmd.Flags().Bool("full", false, "print unified diffs, not just the change list")
	diffCompareCmd.Flags().String("format", "text", "output format: text or json")

	_ = diffCaptureCmd.MarkFlagRequired("audit")
	_ = diffCompareCmd.MarkFlagRequired("audit")

	diffCmd.AddCommand(diffCaptureCmd)
	diffCmd.AddCommand(diffCompareCmd)
	rootCmd.AddCommand(diffCmd)
}

func runDiffCapture(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	auditID, _ := cmd.Flags().GetString("audit")
	stage, _ := cmd.Flags().GetString("stage")
	if stage != manifest.StagePre && stage != manifest.StagePost {
		return fmt.Errorf("invalid stage %q: want pre or post", stage)
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
	if err := manifest.Save(s, auditID, stage, m); err != nil {
		return err
	}
	if _, err := event.NewLog(s).Emit(event.FileCreated, auditID, 0, map[string]any{
		"path":             s.ManifestPath(auditID, stage),
		"file_count":       m.FileCount,
		"total_size_bytes": m.TotalSizeBytes,
	}); err != nil {
		return err
	}

	p := ui.New()
	p.Success("captured %s manifest for audit %s", stage, auditID)
	p.Dim("  %s", m.Summary())
	return nil
}

func runDiffCompare(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	auditID, _ := cmd.Flags().GetString("audit")

	cfg, err := s.LoadConfig()
	if err != nil {
		return err
	}
	opts := manifest.CompareOptions{MaxDiffBytes: configInt(cfg, "diff", "max_diff_bytes")}

	diff, err := manifest.CompareAudit(s, auditID, opts)
	if err != nil {
		return err
	}
	if diff == nil {
		return fmt.Errorf("audit %s does not have both pre and post manifests", auditID)
	}

	if format, _ := cmd.Flags().GetString("format"); format == "json" {
		data, err := json.MarshalIndent(diff, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	p := ui.New()
	p.DiffSummary(diff)
	if full, _ := cmd.Flags().GetBool("full"); full {
		for _, c := range diff.Modified {
			p.Header(c.Path)
			for _, line := range c.DiffLines {
				p.Info("%s", line)
			}
		}
	}
	return nil
}

// configInt reads a nested integer from the loaded config tree.
func configInt(cfg map[string]any, keys ...string) int {
	node := any(cfg)
	for _, key := range keys {
		m, ok := node.(map[string]any)
		if !ok {
			return 0
		}
		node = m[key]
	}
	switch v := node.(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

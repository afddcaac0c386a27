package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/enforce"
)

// exitUsage is the exit code for CLI misuse; everything else, including a
// deny decision, exits zero with the verdict in the JSON output.
const exitUsage = 3

var enforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Evaluate a hook envelope against enabled contracts",
	Long: "Reads a PreToolUse or PostToolUse envelope from stdin and prints the\n" +
		"hook response. Ambiguous input allows; only an explicit contract match\n" +
		"denies.",
	RunE: runEnforce,
}

func init() {
	enforceCmd.Flags().Bool("stdin", false, "read the hook envelope from stdin (required)")
	enforceCmd.Flags().String("severity", string(enforce.FilterAll), "severities to enforce: error, warning, or all")
	enforceCmd.SilenceUsage = true
	rootCmd.AddCommand(enforceCmd)
}

func runEnforce(cmd *cobra.Command, args []string) error {
	fromStdin, _ := cmd.Flags().GetBool("stdin")
	if !fromStdin {
		fmt.Fprintln(cmd.ErrOrStderr(), "enforce requires --stdin")
		os.Exit(exitUsage)
	}

	filter := enforce.FilterAll
	switch sev, _ := cmd.Flags().GetString("severity"); enforce.SeverityFilter(sev) {
	case enforce.FilterError, enforce.FilterWarning, enforce.FilterAll:
		filter = enforce.SeverityFilter(sev)
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "invalid severity %q: want error, warning, or all\n", sev)
		os.Exit(exitUsage)
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "reading stdin: %v\n", err)
		os.Exit(exitUsage)
	}
	env, err := enforce.ParseEnvelope(data)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		os.Exit(exitUsage)
	}

	root := env.CWD
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			root = "."
		}
	}

	gate := enforce.NewGate(root, filter)
	decision, err := gate.Evaluate(env)
	if err != nil {
		// The gate never blocks on its own failures.
		decision = &enforce.Decision{Allow: true, SkipReason: err.Error()}
	}
	out, err := enforce.Render(env.HookEventName, decision)
	if err != nil {
		out = []byte("{}")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

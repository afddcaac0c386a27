package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phaserhq/phaser/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the store configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the merged configuration",
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <dotted.key> <value>",
	Short: "Set one configuration leaf",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default configuration",
	RunE:  runConfigReset,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	if err := s.SetConfigValue(args[0], coerceValue(args[1])); err != nil {
		return err
	}
	ui.New().Success("set %s", args[0])
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	if err := s.ResetConfig(); err != nil {
		return err
	}
	ui.New().Success("configuration reset to defaults")
	return nil
}

// coerceValue turns a flag string into a bool, int, or float when it parses
// as one, so numeric config leaves keep their type.
func coerceValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

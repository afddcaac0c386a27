// Package cmd wires the phaser CLI: flag parsing and dispatch only, with
// the engines living under internal/.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phaserhq/phaser/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "phaser",
	Short: "Audit automation for AI-assisted coding workflows",
	Long: "Phaser runs multi-phase code audits over a project tree, captures what\n" +
		"changed at each step, and encodes the lessons as enforceable contracts\n" +
		"that guard future edits.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .phaser.yaml)")
	rootCmd.PersistentFlags().String("store", "", "store root (default resolved via PHASER_HOME, project marker, then ~/.phaser)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".phaser")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("PHASER")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// openStore resolves the store root, honoring the --store override.
func openStore() (*store.Store, error) {
	dir, _ := rootCmd.PersistentFlags().GetString("store")
	s, err := store.Open(dir)
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// projectRoot is the directory commands operate on: the working
// directory unless overridden by an argument.
func projectRoot(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	return os.Getwd()
}

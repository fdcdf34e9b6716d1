// Package cmd wires the authrepd CLI: AUTHREP_* environment overlay
// via viper, `serve` and `validate-config` subcommands via cobra.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	cfgFormat string
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "authrepd",
		Short: "In-proxy authentication and rate-accounting filter",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the configuration document")
	root.PersistentFlags().StringVar(&cfgFormat, "config-format", "json", "configuration document format: json or yaml")

	viper.SetEnvPrefix("authrep")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("config-format", root.PersistentFlags().Lookup("config-format"))

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateConfigCmd())
	return root
}

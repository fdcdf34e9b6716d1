package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and validate a configuration document without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFromFlags()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d service(s)\n", len(cfg.Services))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teilomillet/koreksi/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration is valid: %s\n", configFile)
			fmt.Fprintf(w, "  provider: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
			fmt.Fprintf(w, "  database: %s\n", cfg.Database.Driver)
			fmt.Fprintf(w, "  routes:   %d\n", len(cfg.Routes))
			fmt.Fprintf(w, "  api keys: %d\n", len(cfg.Auth.Keys))
			return nil
		},
	}
}

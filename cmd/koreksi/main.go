// Command koreksi runs the grammar check service and a few operator tools
// around it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teilomillet/koreksi/server"
)

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "koreksi",
		Short:         "Grammar and style checking over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "koreksi.yaml", "Path to configuration file")

	root.AddCommand(newServeCmd(), newCheckCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "koreksi %s\n", server.Version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

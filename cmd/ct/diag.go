package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/protocol"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "show daemon and store identity/health",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCommand(protocol.Command{Op: "diag"}))
	},
}

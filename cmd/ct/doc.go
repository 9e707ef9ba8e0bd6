package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/protocol"
)

var docCmd = &cobra.Command{
	Use:   "doc <path>",
	Short: "show a symbol's signature and docs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCommand(protocol.Command{Op: "doc", Path: args[0]}))
	},
}

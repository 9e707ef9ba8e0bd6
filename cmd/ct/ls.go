package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/protocol"
)

var lsImplParents bool

var lsCmd = &cobra.Command{
	Use:   "ls <path> [expansion]",
	Short: "list a symbol's neighbors; expansion is a run of '>' (children) / '<' (parents)",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		c := protocol.Command{Op: "ls", Path: args[0], ImplParents: lsImplParents}
		if len(args) == 2 {
			c.Expansion = args[1]
		}
		os.Exit(runCommand(c))
	},
}

func init() {
	lsCmd.Flags().BoolVar(&lsImplParents, "impl-parents", false, "also resolve impl blocks for method symbols")
}

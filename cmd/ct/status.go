package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/protocol"
)

var (
	statusVis           string
	statusUnimplemented bool
	statusTodo          bool
	statusAll           bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show implementation-status counts (and optionally items)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := protocol.Command{Op: "status", Vis: statusVis, All: statusAll}
		if cmd.Flags().Changed("unimplemented") {
			c.Unimplemented = &statusUnimplemented
		}
		if cmd.Flags().Changed("todo") {
			c.Todo = &statusTodo
		}
		os.Exit(runCommand(c))
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusVis, "vis", "", "public|private|all")
	statusCmd.Flags().BoolVar(&statusUnimplemented, "unimplemented", false, "only unimplemented symbols")
	statusCmd.Flags().BoolVar(&statusTodo, "todo", false, "only todo/FIXME symbols")
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "include matching symbols, not just counts")
}

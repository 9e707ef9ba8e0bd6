package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/protocol"
)

var (
	findPath          string
	findKind          string
	findVis           string
	findUnimplemented bool
	findTodo          bool
	findAll           bool
)

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "search symbols by name substring or exact path",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var c protocol.Command
		c.Op = "find"
		if findPath != "" {
			c.Path = findPath
		} else if len(args) == 1 {
			c.Name = args[0]
		}
		c.Kind = findKind
		c.Vis = findVis
		c.All = findAll
		if cmd.Flags().Changed("unimplemented") {
			c.Unimplemented = &findUnimplemented
		}
		if cmd.Flags().Changed("todo") {
			c.Todo = &findTodo
		}
		os.Exit(runCommand(c))
	},
}

func init() {
	findCmd.Flags().StringVar(&findPath, "path", "", "exact canonical path instead of a name search")
	findCmd.Flags().StringVar(&findKind, "kind", "", "restrict to one symbol kind")
	findCmd.Flags().StringVar(&findVis, "vis", "", "public|private|all")
	findCmd.Flags().BoolVar(&findUnimplemented, "unimplemented", false, "only unimplemented symbols")
	findCmd.Flags().BoolVar(&findTodo, "todo", false, "only todo/FIXME symbols")
	findCmd.Flags().BoolVar(&findAll, "all", false, "return full symbol detail instead of path/span only")
}

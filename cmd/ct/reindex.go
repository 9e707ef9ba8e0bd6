package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/protocol"
)

var (
	reindexFeatures       []string
	reindexTarget         string
	reindexModule         string
	reindexStruct         string
	reindexIncludeDerives bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "run a fresh indexing cycle",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCommand(protocol.Command{
			Op: "reindex", Features: reindexFeatures, Target: reindexTarget,
			Module: reindexModule, Struct: reindexStruct, IncludeDerives: reindexIncludeDerives,
		}))
	},
}

func init() {
	reindexCmd.Flags().StringArrayVar(&reindexFeatures, "feature", nil, "cargo feature to enable (repeatable)")
	reindexCmd.Flags().StringVar(&reindexTarget, "target", "", "cargo target triple")
	reindexCmd.Flags().StringVar(&reindexModule, "module", "", "restrict indexing to a module path")
	reindexCmd.Flags().StringVar(&reindexStruct, "struct", "", "restrict indexing to a struct name")
	reindexCmd.Flags().BoolVar(&reindexIncludeDerives, "include-derives", false, "include derive/trait-bridge methods")
}

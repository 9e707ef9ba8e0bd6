package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/protocol"
)

var exportIncludeDocs bool

var exportCmd = &cobra.Command{
	Use:   "export <path...>",
	Short: "assemble one or more symbols' context bundles",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		code := exitOK
		for _, path := range args {
			c := protocol.Command{Op: "export", Path: path, Bundle: true, IncludeDocs: exportIncludeDocs}
			if result := runCommand(c); result != exitOK {
				code = result
			}
		}
		os.Exit(code)
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportIncludeDocs, "include-docs", true, "include doc comments in the bundle")
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/protocol"
)

var (
	benchQueries  uint32
	benchWarmup   uint32
	benchDuration uint32
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "self-benchmark the daemon's query latency and throughput",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCommand(protocol.Command{
			Op: "bench", Queries: benchQueries, Warmup: benchWarmup, Duration: benchDuration,
		}))
	},
}

func init() {
	benchCmd.Flags().Uint32Var(&benchQueries, "queries", 0, "number of queries to run (0 = daemon default)")
	benchCmd.Flags().Uint32Var(&benchWarmup, "warmup", 0, "warmup queries to discard before measuring")
	benchCmd.Flags().Uint32Var(&benchDuration, "duration", 0, "seconds to run (0 = daemon default)")
}

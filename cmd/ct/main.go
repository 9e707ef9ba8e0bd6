// Command ct is the thin query client: each subcommand builds one
// protocol.Command, sends it to the workspace's running ctd daemon, and
// prints the response. It never indexes or touches the Symbol Store
// directly.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/client"
	"github.com/ct-tools/ctd/internal/config"
	"github.com/ct-tools/ctd/internal/ctid"
	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/transport"
)

// Exit codes mirror spec.md §6's error-to-exit-code table.
const (
	exitOK                 = 0
	exitInvalidArg         = 2
	exitDecisionRequired   = 3
	exitDaemonUnavailable  = 4
	exitIndexMismatch      = 5
	exitInternalError      = 6
	exitDaemonAlreadyAlive = 7
)

var (
	workspacePath string
	formatFlag    string
	prettyFlag    bool
)

var rootCmd = &cobra.Command{
	Use:           "ct",
	Short:         "ct - query client for a ctd indexing daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspacePath, "workspace", ".", "workspace root")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "json", "output format: json|pretty")
	rootCmd.PersistentFlags().BoolVar(&prettyFlag, "pretty", false, "shorthand for --format pretty")

	rootCmd.AddCommand(findCmd, docCmd, lsCmd, exportCmd, reindexCmd, statusCmd, diagCmd, benchCmd, daemonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitInternalError)
	}
}

// clientHandle resolves the workspace's daemon address and returns a ready
// *client.Client, independent of whether a daemon is actually listening.
func clientHandle() (*client.Client, error) {
	root, err := filepath.Abs(workspacePath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	fingerprint := ctid.WorkspaceFingerprint(root)
	kind := transport.Resolve(transport.Kind(cfg.Transport))
	return client.New(kind, addrFor(kind, cfg, fingerprint)), nil
}

func addrFor(kind transport.Kind, cfg config.Config, fingerprint string) string {
	switch kind {
	case transport.KindTCP:
		if cfg.TCPAddr != "" {
			return cfg.TCPAddr
		}
		return transport.DefaultTCPAddr
	case transport.KindPipe:
		return transport.SocketName(fingerprint)
	default:
		if cfg.SocketPath != "" && cfg.SocketPath != config.Default().SocketPath {
			return cfg.SocketPath
		}
		return filepath.Join(filepath.Dir(cfg.SocketPath), transport.SocketName(fingerprint))
	}
}

// runCommand sends cmd, prints the result in the requested format, and
// returns the process exit code spec.md §6 maps to the outcome.
func runCommand(cmd protocol.Command) int {
	c, err := clientHandle()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ct:", err)
		return exitInternalError
	}

	resp, err := c.Send(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ct: daemon unavailable:", err)
		return exitDaemonUnavailable
	}

	switch {
	case resp.IsError():
		fmt.Fprintln(os.Stderr, "ct:", resp.Err)
		return exitCodeFor(resp.ErrCode)
	case resp.IsDecisionRequired():
		printResponse(resp.DecisionRequired)
		return exitDecisionRequired
	default:
		printData(resp.Data)
		return exitOK
	}
}

func exitCodeFor(code protocol.ErrorCode) int {
	switch code {
	case protocol.ErrInvalidArg:
		return exitInvalidArg
	case protocol.ErrDaemonUnavailable:
		return exitDaemonUnavailable
	case protocol.ErrIndexMismatch:
		return exitIndexMismatch
	default:
		return exitInternalError
	}
}

func printData(raw json.RawMessage) {
	if usesPretty() {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			out, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(out))
			return
		}
	}
	fmt.Println(string(raw))
}

func printResponse(v interface{}) {
	if usesPretty() {
		out, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(out))
		return
	}
	out, _ := json.Marshal(v)
	fmt.Println(string(out))
}

func usesPretty() bool {
	return prettyFlag || formatFlag == "pretty"
}

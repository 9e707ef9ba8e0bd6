package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/config"
	"github.com/ct-tools/ctd/internal/ctid"
	"github.com/ct-tools/ctd/internal/protocol"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "start, stop, restart, or check the workspace's ctd daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "launch a detached ctd for this workspace",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runDaemonStart())
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "signal the workspace's ctd to shut down",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runDaemonStop())
	},
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "stop then start the workspace's ctd",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if code := runDaemonStop(); code != exitOK && code != exitDaemonUnavailable {
			os.Exit(code)
		}
		os.Exit(runDaemonStart())
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "report whether the workspace's ctd is reachable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCommand(protocol.Command{Op: "diag"}))
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonRestartCmd, daemonStatusCmd)
}

// pidFilePath keeps one tracked pid per workspace, alongside the symbol
// store the daemon opens for that same fingerprint.
func pidFilePath() (string, error) {
	root, err := filepath.Abs(workspacePath)
	if err != nil {
		return "", err
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	fingerprint := ctid.WorkspaceFingerprint(root)
	return filepath.Join(cfg.CacheDir(fingerprint), "ctd.pid"), nil
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	return pid, nil
}

func runDaemonStart() int {
	pidPath, err := pidFilePath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ct:", err)
		return exitInternalError
	}

	if pid, err := readPidFile(pidPath); err == nil && processAlive(pid) {
		fmt.Fprintf(os.Stderr, "ct: daemon already running (pid %d)\n", pid)
		return exitDaemonAlreadyAlive
	}

	root, err := filepath.Abs(workspacePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ct:", err)
		return exitInternalError
	}

	ctdPath, err := exec.LookPath("ctd")
	if err != nil {
		fmt.Fprintln(os.Stderr, "ct: cannot find ctd on PATH:", err)
		return exitDaemonUnavailable
	}

	if err := os.MkdirAll(filepath.Dir(pidPath), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "ct:", err)
		return exitInternalError
	}

	child := exec.Command(ctdPath, "--idx", root)
	configureDetachedProcess(child)
	if err := child.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "ct: failed to start daemon:", err)
		return exitInternalError
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(child.Process.Pid)), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "ct: daemon started but failed to record pid:", err)
		return exitInternalError
	}
	_ = child.Process.Release()

	if !waitForReachable(10 * time.Second) {
		fmt.Fprintln(os.Stderr, "ct: daemon started but did not become reachable")
		return exitDaemonUnavailable
	}

	fmt.Printf("ctd started (pid %d)\n", child.Process.Pid)
	return exitOK
}

func runDaemonStop() int {
	pidPath, err := pidFilePath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ct:", err)
		return exitInternalError
	}

	pid, err := readPidFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "ct: no pid file, daemon is not tracked as running")
			return exitDaemonUnavailable
		}
		fmt.Fprintln(os.Stderr, "ct:", err)
		return exitInternalError
	}

	if !processAlive(pid) {
		_ = os.Remove(pidPath)
		fmt.Fprintln(os.Stderr, "ct: daemon is not running")
		return exitDaemonUnavailable
	}

	if err := signalStop(pid); err != nil {
		fmt.Fprintln(os.Stderr, "ct: failed to signal daemon:", err)
		return exitInternalError
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) && processAlive(pid) {
		time.Sleep(100 * time.Millisecond)
	}
	_ = os.Remove(pidPath)

	fmt.Printf("ctd stopped (pid %d)\n", pid)
	return exitOK
}

// waitForReachable polls diag until the freshly started daemon accepts
// connections or the timeout elapses.
func waitForReachable(timeout time.Duration) bool {
	c, err := clientHandle()
	if err != nil {
		return false
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := c.Send(protocol.Command{Op: "diag"}); err == nil {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

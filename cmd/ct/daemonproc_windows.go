//go:build windows

package main

import (
	"os"
	"os/exec"
)

func configureDetachedProcess(cmd *exec.Cmd) {}

func signalStop(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// processAlive is best-effort on Windows: os.FindProcess never fails for a
// pid that once existed, so a stale pid file can read as alive until the
// daemon itself overwrites or removes it.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

//go:build windows

package sysservice

import "os/exec"

// setProcessGroup is a no-op on Windows; killProcessGroup falls back
// to killing the single tracked process instead of a process group.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

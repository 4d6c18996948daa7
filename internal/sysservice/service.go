// Package sysservice implements the systemRequest variant: host info,
// process listing, command execution under a denylist and process-group
// timeout, and confirmation-gated power-state transitions.
package sysservice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"os/user"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/privilege"
	"github.com/thea-remote/hostd/internal/wire"
)

const (
	defaultCommandTimeout = 60 * time.Second
	maxCommandTimeout     = 300 * time.Second
)

// Service implements host introspection, command execution and
// power-state control for one agent instance.
type Service struct {
	control           platform.SystemControl
	requireConfirmation bool
	gate              *confirmationGate
}

// New builds a Service. requireConfirmation gates executeCommand (and is
// ignored for reboot/shutdown/logout, which always require confirmation).
func New(control platform.SystemControl, requireConfirmation bool, confirm ConfirmFunc) *Service {
	return &Service{
		control:             control,
		requireConfirmation: requireConfirmation,
		gate:                newConfirmationGate(confirm),
	}
}

// Handle implements the dispatcher handler contract for systemRequest.
func (s *Service) Handle(msg wire.Message) (wire.Message, error) {
	var req wire.SystemRequestPayload
	if err := msg.Decode(&req); err != nil {
		return wire.Message{}, fmt.Errorf("sysservice: decode request: %w", err)
	}

	switch req.Operation {
	case wire.SystemOpGetInfo:
		return s.getInfo()
	case wire.SystemOpGetProcesses:
		return s.getProcesses()
	case wire.SystemOpExecuteCommand:
		return s.executeCommand(req.Command, req.Cwd, req.TimeoutSeconds)
	case wire.SystemOpReboot:
		return s.powerTransition("reboot", "reboot the host", s.control.Reboot)
	case wire.SystemOpShutdown:
		return s.powerTransition("shutdown", "shut down the host", s.control.Shutdown)
	case wire.SystemOpLogout:
		return s.powerTransition("logout", "log out the current user", s.control.Logout)
	default:
		return errorResponse(fmt.Errorf("sysservice: unsupported operation %q", req.Operation))
	}
}

func (s *Service) getInfo() (wire.Message, error) {
	info := wire.SystemInfo{Architecture: runtime.GOARCH}

	if hi, err := host.Info(); err == nil {
		info.Hostname = hi.Hostname
		info.OSVersion = fmt.Sprintf("%s %s", hi.Platform, hi.PlatformVersion)
		info.UptimeSeconds = hi.Uptime
	}
	if counts, err := cpu.Counts(true); err == nil {
		info.CPUCount = counts
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
		info.AvailableMemory = vm.Available
	}
	if du, err := disk.Usage("/"); err == nil {
		info.TotalDisk = du.Total
		info.AvailableDisk = du.Free
	}
	if u, err := user.Current(); err == nil {
		info.CurrentUser = u.Username
	}

	return wire.NewMessage(wire.TypeSystemResponse, wire.SystemResponsePayload{Info: &info})
}

func (s *Service) getProcesses() (wire.Message, error) {
	procs, err := process.Processes()
	if err != nil {
		return errorResponse(fmt.Errorf("sysservice: list processes: %w", err))
	}

	out := make([]wire.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, _ := p.Name()
		exe, _ := p.Exe()
		username, _ := p.Username()
		cpuPct, _ := p.CPUPercent()
		memInfo, _ := p.MemoryInfo()
		createdAtMs, _ := p.CreateTime()
		ppid, _ := p.Ppid()

		row := wire.ProcessInfo{
			PID:        p.Pid,
			Name:       name,
			Path:       exe,
			User:       username,
			CPUPercent: cpuPct,
			PPID:       ppid,
		}
		if memInfo != nil {
			row.MemoryBytes = memInfo.RSS
		}
		if createdAtMs > 0 {
			row.StartedAt = time.UnixMilli(createdAtMs).UTC().Format(time.RFC3339)
		}
		out = append(out, row)
	}

	return wire.NewMessage(wire.TypeSystemResponse, wire.SystemResponsePayload{Processes: out})
}

func (s *Service) executeCommand(command, cwd string, timeoutSeconds int) (wire.Message, error) {
	if command == "" {
		return errorResponse(fmt.Errorf("sysservice: empty command"))
	}
	if isBlocked(command) {
		return errorResponse(fmt.Errorf("sysservice: command rejected by policy"))
	}

	if s.requireConfirmation {
		id, approved := s.gate.request(fmt.Sprintf("run command: %s", command))
		if !approved {
			return wire.NewMessage(wire.TypeSystemResponse, wire.SystemResponsePayload{
				Error:          "confirmation denied or timed out",
				ConfirmationID: id,
			})
		}
	}

	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	if timeout > maxCommandTimeout {
		timeout = maxCommandTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shell, shellArg := shellCommand()
	cmd := exec.CommandContext(ctx, shell, shellArg, command)
	if cwd != "" {
		cmd.Dir = cwd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: maxOutputBytes}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: maxOutputBytes}
	setProcessGroup(cmd)

	err := cmd.Run()

	resp := wire.SystemResponsePayload{Stdout: stdout.String(), Stderr: stderr.String()}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		_ = killProcessGroup(cmd)
		resp.ExitCode = -1
		resp.Error = fmt.Sprintf("command timed out after %s", timeout)
	case err == nil:
		resp.ExitCode = 0
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			resp.ExitCode = exitErr.ExitCode()
		} else {
			resp.ExitCode = -1
			resp.Error = err.Error()
		}
	}

	return wire.NewMessage(wire.TypeSystemResponse, resp)
}

func shellCommand() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd.exe", "/C"
	}
	return "/bin/sh", "-c"
}

// powerTransition always gates behind confirmation regardless of
// s.requireConfirmation, per the always-confirm policy for
// reboot/shutdown/logout. opType is the privilege package's command
// type key, used only to annotate the response when the operation
// needs elevated rights the host process may not hold.
func (s *Service) powerTransition(opType, description string, action func() error) (wire.Message, error) {
	id, approved := s.gate.request(description)
	if !approved {
		return wire.NewMessage(wire.TypeSystemResponse, wire.SystemResponsePayload{
			Error:          "confirmation denied or timed out",
			ConfirmationID: id,
		})
	}
	if err := action(); err != nil {
		msg := fmt.Sprintf("sysservice: %s: %v", description, err)
		if privilege.RequiresElevation(opType) {
			msg += " (this operation normally requires elevated privileges)"
		}
		return errorResponse(fmt.Errorf("%s", msg))
	}
	return wire.NewMessage(wire.TypeSystemResponse, wire.SystemResponsePayload{
		Message:        description + " initiated",
		ConfirmationID: id,
	})
}

func errorResponse(err error) (wire.Message, error) {
	m, _ := wire.NewMessage(wire.TypeSystemResponse, wire.SystemResponsePayload{Error: err.Error()})
	return m, nil
}

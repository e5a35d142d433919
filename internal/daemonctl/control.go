// Package daemonctl launches, stops, and inspects the pagepass daemon process
// on behalf of the CLI.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pagepass/internal/config"
	"pagepass/internal/ipc"
	"pagepass/internal/preflight"
	"pagepass/internal/store"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// Launch starts a detached pagepass daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

const pollInterval = 200 * time.Millisecond

// poll calls check until it reports done, returns an error, or timeout
// elapses. The last transient failure is returned on timeout.
func poll(timeout time.Duration, check func() (done bool, transient error)) error {
	deadline := time.Now().Add(timeout)
	var last error
	for {
		done, err := check()
		if done {
			return nil
		}
		if err != nil {
			last = err
		}
		if !time.Now().Before(deadline) {
			if last == nil {
				last = errors.New("timed out")
			}
			return last
		}
		time.Sleep(pollInterval)
	}
}

// WaitForClient dials socketPath until the daemon answers or timeout elapses.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := poll(timeout, func() (bool, error) {
		c, err := ipc.Dial(socketPath)
		if err != nil {
			return false, err
		}
		client = c
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return client, nil
}

// EnsureStarted launches and/or starts the daemon and returns the resulting state.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	statusResp, statusErr := client.Status()
	if statusErr == nil && statusResp != nil && statusResp.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	message := strings.TrimSpace(resp.Message)
	if resp.Started {
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}, nil
	}
	if strings.Contains(strings.ToLower(message), "already running") {
		return StartResult{State: StartStateAlreadyRunning, Message: message}, nil
	}
	if message == "" {
		message = "Start request sent"
	}
	return StartResult{State: StartStateRequested, Launched: launched, Message: message}, nil
}

// WaitForShutdown waits until the socket stops answering or the daemon
// reports that it is no longer running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	err := poll(timeout, func() (bool, error) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return isDaemonUnavailable(err), err
		}
		defer client.Close()
		status, err := client.Status()
		if err != nil {
			return false, err
		}
		if status.Running {
			return false, errors.New("daemon still running")
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	return true, status.PID, nil
}

// ReadPID returns the pid recorded in the daemon pid file, or 0 if none.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	Terminated       bool
	ForcedKill       bool
	PID              int
}

// StopAndTerminate asks the daemon to stop its services, then signals the
// process to exit. The process is force-killed if it is still alive after
// gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if statusResp, statusErr := client.Status(); statusErr == nil {
		pid = statusResp.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp.Stopped}

	if pid > 0 && pid != os.Getpid() {
		if proc, findErr := os.FindProcess(pid); findErr == nil {
			if sigErr := proc.Signal(syscall.SIGTERM); sigErr == nil {
				result.Terminated = true
			}
		}
	}

	exited := poll(gracePeriod, func() (bool, error) {
		alive, _, _ := ProcessInfo(socketPath)
		return !alive, nil
	})
	if exited == nil {
		return result, nil
	}

	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil || !alive {
		return result, nil
	}
	if livePID != 0 {
		pid = livePID
	}
	killedPID, killErr := ForceKillProcess(cfg.PIDPath(), cfg.LockPath(), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// StatusLine is one labeled readiness line in the status display.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// Snapshot combines daemon status with locally evaluated checks.
type Snapshot struct {
	Status *ipc.StatusResponse
	Checks []StatusLine
}

// BuildStatusSnapshot collects daemon status and falls back to reading the
// database directly when the daemon is not reachable.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	statusResp := &ipc.StatusResponse{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			statusResp = resp
		}
	}

	dbResult, health := preflight.CheckDatabase(ctx, cfg)
	if statusResp.PID == 0 {
		statusResp.DBPath = cfg.DatabasePath()
		statusResp.LockPath = cfg.LockPath()
		statusResp.SchemaVersion = health.SchemaVersion
		statusResp.OpenHandoffs = health.OpenHandoffs
		statusResp.QueuedEntries = health.QueuedEntries
		statusResp.DatabaseError = health.Error
		statusResp.Books = offlineBookStats(ctx, cfg, health)
	}

	return &Snapshot{
		Status: statusResp,
		Checks: BuildSystemChecks(ctx, cfg, statusResp, dbResult),
	}, nil
}

func offlineBookStats(ctx context.Context, cfg *config.Config, health store.DatabaseHealth) map[string]int {
	if !health.DatabaseReadable {
		return map[string]int{}
	}
	st, err := store.Open(cfg)
	if err != nil {
		return map[string]int{}
	}
	defer st.Close()
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	stats, err := st.Stats(queryCtx)
	if err != nil {
		return map[string]int{}
	}
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// BuildSystemChecks resolves status lines that combine runtime state and config checks.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, status *ipc.StatusResponse, dbResult preflight.Result) []StatusLine {
	lines := make([]StatusLine, 0, 6)
	switch {
	case status != nil && status.Running:
		lines = append(lines, StatusLine{Label: "PagePass", Severity: "ok", Detail: "Running"})
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "ok", Detail: status.APIAddress})
	case status != nil && status.PID != 0:
		lines = append(lines, StatusLine{Label: "PagePass", Severity: "warn", Detail: "Process up, services stopped (run `pagepass start`)"})
	default:
		lines = append(lines, StatusLine{Label: "PagePass", Severity: "warn", Detail: "Not running (run `pagepass start`)"})
	}

	lines = append(lines, lineFromResult(dbResult, "error"))
	for _, dir := range []struct {
		label string
		path  string
	}{
		{label: "Data directory", path: cfg.Paths.DataDir},
		{label: "Log directory", path: cfg.Paths.LogDir},
	} {
		lines = append(lines, lineFromResult(preflight.CheckDirectoryAccess(dir.label, dir.path), "error"))
	}

	ntfy := preflight.CheckNtfyFromConfig(ctx, cfg)
	if ntfy.Passed && ntfy.Detail == "Disabled" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	} else {
		line := lineFromResult(ntfy, "warn")
		line.Label = "Notifications"
		lines = append(lines, line)
	}
	return lines
}

func lineFromResult(result preflight.Result, failSeverity string) StatusLine {
	severity := failSeverity
	if result.Passed {
		severity = "ok"
	}
	return StatusLine{Label: result.Name, Severity: severity, Detail: result.Detail}
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"time"

	"bojmock/pkg/utils/logger"

	"go.uber.org/zap"
)

// ProcessInvoker starts host processes.
type ProcessInvoker struct {
	cfg Config
}

// NewProcessInvoker creates an invoker for host processes.
func NewProcessInvoker(cfg Config) *ProcessInvoker {
	return &ProcessInvoker{cfg: cfg.withDefaults()}
}

// Invoke starts the process, feeds stdin, and resolves exactly once: either
// the process exits or the wall timer kills its process group.
func (p *ProcessInvoker) Invoke(ctx context.Context, inv Invocation) Outcome {
	start := time.Now()
	stdout := newCappedBuffer(p.cfg.StdoutMaxBytes)
	stderr := newCappedBuffer(p.cfg.StderrMaxBytes)

	cmd := exec.Command(inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = inv.Env
	}
	cmd.Stdin = bytes.NewReader(inv.Stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = buildSysProcAttr()
	cmd.WaitDelay = p.cfg.WaitDelay

	if err := cmd.Start(); err != nil {
		logger.Warn(ctx, "start process failed", zap.String("program", inv.Program), zap.Error(err))
		return faultOutcome(err, start)
	}

	// resolved is claimed by whichever of exit or timer fires first.
	var resolved atomic.Bool
	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if inv.Timeout > 0 {
			timer := time.NewTimer(inv.Timeout)
			defer timer.Stop()
			wallTimer = timer.C
		}
		select {
		case <-wallTimer:
			if resolved.CompareAndSwap(false, true) {
				timedOut.Store(true)
			}
			killProcessTree(cmd)
		case <-ctx.Done():
			killProcessTree(cmd)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	// children backgrounded into the group outlive the leader otherwise
	killProcessTree(cmd)
	exitWon := resolved.CompareAndSwap(false, true)

	out := Outcome{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  time.Since(start),
	}
	if !exitWon && timedOut.Load() {
		out.TimedOut = true
		return out
	}
	if waitErr != nil && !isExitError(waitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Warn(ctx, "wait process failed", zap.String("program", inv.Program), zap.Error(waitErr))
	}
	out.ExitCode = exitCode(exitStatus(cmd.ProcessState))
	return out
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

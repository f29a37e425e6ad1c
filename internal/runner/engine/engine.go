// Package engine runs one external process per invocation with a wall-clock
// deadline and capped output capture.
package engine

import (
	"context"
	"time"
)

const (
	defaultStdoutMaxBytes int64 = 64 * 1024
	defaultStderrMaxBytes int64 = 64 * 1024
	defaultWaitDelay            = 500 * time.Millisecond
)

// Invoker runs one invocation to completion. It never returns before the
// process exited or was killed.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) Outcome
}

// Invocation describes one process to start.
type Invocation struct {
	Program string
	Args    []string
	// Dir is the working directory. For container execs it is the path
	// inside the container.
	Dir   string
	Stdin []byte
	Env   []string
	// Timeout is the wall-clock budget; zero disables the timer.
	Timeout time.Duration
	// Container is the target container for exec invokers; empty for host processes.
	Container string
}

// Argv returns program followed by args.
func (inv Invocation) Argv() []string {
	out := make([]string, 0, len(inv.Args)+1)
	out = append(out, inv.Program)
	return append(out, inv.Args...)
}

// Outcome is the single resolution of one invocation.
type Outcome struct {
	// ExitCode is nil when the process timed out or never started.
	ExitCode *int
	Stdout   string
	Stderr   string
	TimedOut bool
	// Truncated is set when either stream hit its byte cap.
	Truncated bool
	// Fault is set when the process could not be started at all.
	Fault    error
	Duration time.Duration
}

// Succeeded reports a normal zero exit.
func (o Outcome) Succeeded() bool {
	return o.Fault == nil && !o.TimedOut && o.ExitCode != nil && *o.ExitCode == 0
}

// Config controls capture limits.
type Config struct {
	StdoutMaxBytes int64
	StderrMaxBytes int64
	// WaitDelay bounds how long pipes may stay open after the process is gone.
	WaitDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.StdoutMaxBytes <= 0 {
		c.StdoutMaxBytes = defaultStdoutMaxBytes
	}
	if c.StderrMaxBytes <= 0 {
		c.StderrMaxBytes = defaultStderrMaxBytes
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultWaitDelay
	}
	return c
}

func exitCode(code int) *int {
	return &code
}

func faultOutcome(err error, start time.Time) Outcome {
	return Outcome{
		Fault:    err,
		Stderr:   "failed to start process: " + err.Error(),
		Duration: time.Since(start),
	}
}

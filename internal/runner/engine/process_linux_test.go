//go:build linux

package engine_test

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"bojmock/internal/runner/engine"
)

func TestProcessInvokerInvoke(t *testing.T) {
	inv := engine.NewProcessInvoker(engine.Config{StdoutMaxBytes: 1024, StderrMaxBytes: 1024})

	cases := []struct {
		name   string
		in     engine.Invocation
		verify func(t *testing.T, out engine.Outcome)
	}{
		{
			name: "normal_exit",
			in:   engine.Invocation{Program: "/bin/sh", Args: []string{"-c", "echo hello; echo oops >&2"}, Timeout: 5 * time.Second},
			verify: func(t *testing.T, out engine.Outcome) {
				if out.ExitCode == nil || *out.ExitCode != 0 {
					t.Fatalf("unexpected exit code: %v", out.ExitCode)
				}
				if out.Stdout != "hello\n" || out.Stderr != "oops\n" {
					t.Fatalf("unexpected output: %q %q", out.Stdout, out.Stderr)
				}
				if !out.Succeeded() || out.TimedOut {
					t.Fatalf("expected success: %+v", out)
				}
			},
		},
		{
			name: "non_zero_exit",
			in:   engine.Invocation{Program: "/bin/sh", Args: []string{"-c", "exit 3"}, Timeout: 5 * time.Second},
			verify: func(t *testing.T, out engine.Outcome) {
				if out.ExitCode == nil || *out.ExitCode != 3 {
					t.Fatalf("expected exit 3, got %v", out.ExitCode)
				}
				if out.Succeeded() {
					t.Fatalf("non-zero exit must not succeed")
				}
			},
		},
		{
			name: "stdin_is_delivered",
			in:   engine.Invocation{Program: "/bin/cat", Stdin: []byte("1 2\n3\n"), Timeout: 5 * time.Second},
			verify: func(t *testing.T, out engine.Outcome) {
				if out.Stdout != "1 2\n3\n" {
					t.Fatalf("stdout = %q", out.Stdout)
				}
			},
		},
		{
			name: "working_dir",
			in:   engine.Invocation{Program: "/bin/pwd", Dir: "/", Timeout: 5 * time.Second},
			verify: func(t *testing.T, out engine.Outcome) {
				if strings.TrimSpace(out.Stdout) != "/" {
					t.Fatalf("pwd = %q", out.Stdout)
				}
			},
		},
		{
			name: "timeout_kills_process",
			in:   engine.Invocation{Program: "/bin/sh", Args: []string{"-c", "while :; do :; done"}, Timeout: 200 * time.Millisecond},
			verify: func(t *testing.T, out engine.Outcome) {
				if !out.TimedOut || out.ExitCode != nil {
					t.Fatalf("expected timeout with nil exit code: %+v", out)
				}
				if out.Duration > 3*time.Second {
					t.Fatalf("timeout resolved too late: %s", out.Duration)
				}
			},
		},
		{
			name: "timeout_kills_children",
			in:   engine.Invocation{Program: "/bin/sh", Args: []string{"-c", "sleep 30 & sleep 30; wait"}, Timeout: 200 * time.Millisecond},
			verify: func(t *testing.T, out engine.Outcome) {
				if !out.TimedOut {
					t.Fatalf("expected timeout: %+v", out)
				}
				if out.Duration > 3*time.Second {
					t.Fatalf("children kept the invocation alive: %s", out.Duration)
				}
			},
		},
		{
			name: "output_is_capped",
			in:   engine.Invocation{Program: "/bin/sh", Args: []string{"-c", "head -c 200000 /dev/zero | tr '\\0' 'x'"}, Timeout: 5 * time.Second},
			verify: func(t *testing.T, out engine.Outcome) {
				if len(out.Stdout) != 1024 {
					t.Fatalf("stdout length = %d, want 1024", len(out.Stdout))
				}
				if !out.Truncated {
					t.Fatalf("expected truncated flag")
				}
				if out.ExitCode == nil || *out.ExitCode != 0 {
					t.Fatalf("unexpected exit code: %v", out.ExitCode)
				}
			},
		},
		{
			name: "missing_program_is_fault",
			in:   engine.Invocation{Program: "/definitely/not/here", Timeout: time.Second},
			verify: func(t *testing.T, out engine.Outcome) {
				if out.Fault == nil || out.ExitCode != nil || out.TimedOut {
					t.Fatalf("expected fault outcome: %+v", out)
				}
				if !strings.Contains(out.Stderr, "failed to start process") {
					t.Fatalf("missing fault note: %q", out.Stderr)
				}
			},
		},
		{
			name: "signal_death_maps_to_128_plus",
			in:   engine.Invocation{Program: "/bin/sh", Args: []string{"-c", "kill -9 $$"}, Timeout: 5 * time.Second},
			verify: func(t *testing.T, out engine.Outcome) {
				if out.ExitCode == nil || *out.ExitCode != 137 {
					t.Fatalf("expected exit 137, got %v", out.ExitCode)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.verify(t, inv.Invoke(context.Background(), tc.in))
		})
	}
}

func TestProcessInvokerReapsBackgroundChildren(t *testing.T) {
	if _, err := exec.LookPath("pgrep"); err != nil {
		t.Skip("pgrep not available")
	}
	inv := engine.NewProcessInvoker(engine.Config{})
	out := inv.Invoke(context.Background(), engine.Invocation{
		Program: "/bin/sh",
		Args:    []string{"-c", "sleep 47.321 >/dev/null 2>&1 </dev/null & echo started"},
		Timeout: 5 * time.Second,
	})
	if out.ExitCode == nil || *out.ExitCode != 0 || out.Stdout != "started\n" {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		pids, _ := exec.Command("pgrep", "-f", "^sleep 47.321").Output()
		if len(strings.TrimSpace(string(pids))) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("background child survived the run: pids %q", pids)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

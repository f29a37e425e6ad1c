//go:build linux

// Command run-guard applies resource limits and an optional seccomp filter to
// itself, then replaces itself with the program named after "--".
//
//	run-guard [--cpu-seconds N] [--output-mb N] [--memory-mb N] [--stack-mb N]
//	          [--nproc N] [--seccomp profile.json] -- program args...
package main

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// exitGuardFailure is distinct from the exit codes of the guarded program's
// usual failures so a broken guard is visible in run results.
const exitGuardFailure = 126

func main() {
	if err := run(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "run-guard: "+err.Error())
		os.Exit(exitGuardFailure)
	}
}

func run(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	for _, l := range opts.rlimits() {
		if err := unix.Setrlimit(l.resource, &unix.Rlimit{Cur: l.value, Max: l.value}); err != nil {
			return fmt.Errorf("set rlimit %s: %w", l.name, err)
		}
	}
	if opts.seccompProfile != "" {
		profile, err := loadSeccompProfile(opts.seccompProfile)
		if err != nil {
			return err
		}
		if err := applySeccomp(profile); err != nil {
			return err
		}
	}

	cmdPath, err := exec.LookPath(opts.argv[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	return unix.Exec(cmdPath, opts.argv, os.Environ())
}

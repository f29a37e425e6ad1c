//go:build linux

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"--cpu-seconds", "3", "--output-mb=16", "--nproc", "64", "--", "python3", "main.py", "--flag"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if len(opts.argv) != 3 || opts.argv[0] != "python3" || opts.argv[2] != "--flag" {
		t.Fatalf("argv = %v", opts.argv)
	}
	limits := opts.rlimits()
	if len(limits) != 3 {
		t.Fatalf("limits = %+v", limits)
	}
	if limits[0].resource != unix.RLIMIT_CPU || limits[0].value != 3 {
		t.Fatalf("cpu limit = %+v", limits[0])
	}
	if limits[1].resource != unix.RLIMIT_FSIZE || limits[1].value != 16*1024*1024 {
		t.Fatalf("fsize limit = %+v", limits[1])
	}
}

func TestParseArgsErrors(t *testing.T) {
	for name, args := range map[string][]string{
		"no_command":   {"--cpu-seconds", "1", "--"},
		"bad_number":   {"--nproc", "many", "--", "true"},
		"unknown_flag": {"--gpu", "1", "--", "true"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := parseArgs(args); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadSeccompProfile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"defaultAction":"SCMP_ACT_ALLOW","syscalls":[{"names":["ptrace","mount"],"action":"SCMP_ACT_ERRNO"}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	profile, err := loadSeccompProfile(good)
	if err != nil {
		t.Fatalf("loadSeccompProfile: %v", err)
	}
	if len(profile.Syscalls) != 1 || len(profile.Syscalls[0].Names) != 2 {
		t.Fatalf("profile = %+v", profile)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"defaultAction":"SCMP_ACT_TRACE"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadSeccompProfile(bad); err == nil {
		t.Fatalf("expected unsupported action error")
	}
}

func TestParseSeccompAction(t *testing.T) {
	action, err := parseSeccompAction("scmp_act_allow")
	if err != nil || action != seccomp.ActAllow {
		t.Fatalf("allow = %v, %v", action, err)
	}
	if _, err := parseSeccompAction("SCMP_ACT_KILL"); err != nil {
		t.Fatalf("kill: %v", err)
	}
}

//go:build linux

package main

import (
	"flag"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

type options struct {
	cpuSeconds     uint64
	outputMB       uint64
	memoryMB       uint64
	stackMB        uint64
	nproc          uint64
	seccompProfile string
	argv           []string
}

type rlimit struct {
	name     string
	resource int
	value    uint64
}

func parseArgs(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("run-guard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Uint64Var(&opts.cpuSeconds, "cpu-seconds", 0, "CPU time limit in seconds")
	fs.Uint64Var(&opts.outputMB, "output-mb", 0, "largest file the program may write, in MiB")
	fs.Uint64Var(&opts.memoryMB, "memory-mb", 0, "address space limit in MiB")
	fs.Uint64Var(&opts.stackMB, "stack-mb", 0, "stack size limit in MiB")
	fs.Uint64Var(&opts.nproc, "nproc", 0, "process count limit for the user")
	fs.StringVar(&opts.seccompProfile, "seccomp", "", "seccomp profile JSON")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.argv = fs.Args()
	if len(opts.argv) == 0 {
		return options{}, fmt.Errorf("command is required after --")
	}
	return opts, nil
}

// rlimits lists the limits to set; zero values are left alone.
func (o options) rlimits() []rlimit {
	const mib = 1024 * 1024
	var out []rlimit
	if o.cpuSeconds > 0 {
		out = append(out, rlimit{name: "cpu", resource: unix.RLIMIT_CPU, value: o.cpuSeconds})
	}
	if o.outputMB > 0 {
		out = append(out, rlimit{name: "fsize", resource: unix.RLIMIT_FSIZE, value: o.outputMB * mib})
	}
	if o.memoryMB > 0 {
		out = append(out, rlimit{name: "as", resource: unix.RLIMIT_AS, value: o.memoryMB * mib})
	}
	if o.stackMB > 0 {
		out = append(out, rlimit{name: "stack", resource: unix.RLIMIT_STACK, value: o.stackMB * mib})
	}
	if o.nproc > 0 {
		out = append(out, rlimit{name: "nproc", resource: unix.RLIMIT_NPROC, value: o.nproc})
	}
	return out
}

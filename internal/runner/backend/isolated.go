package backend

import (
	"context"
	"math"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"bojmock/internal/runner/engine"
	"bojmock/internal/runner/profile"
	appErr "bojmock/pkg/errors"
)

// Exit statuses of coreutils timeout: 124 when the deadline fired, 137 when
// the follow-up KILL was needed. A program can exit with either on its own
// and an OOM kill also yields 137, so they only count together with the
// elapsed time.
const (
	timeoutExitStatus = 124
	killedExitStatus  = 137
)

// Isolated runs toolchains inside the language's container. The host work
// root is expected to be bind mounted at ContainerWorkDir.
type Isolated struct {
	cfg     Config
	invoker engine.Invoker
}

func NewIsolated(cfg Config, invoker engine.Invoker) *Isolated {
	return &Isolated{cfg: cfg.withDefaults(), invoker: invoker}
}

func (b *Isolated) Mode() Mode { return ModeIsolated }

func (b *Isolated) Compile(ctx context.Context, dir string, spec profile.LanguageSpec) (engine.Outcome, bool, error) {
	if !spec.Compiled() {
		return engine.Outcome{}, true, nil
	}
	if spec.Container == "" {
		return engine.Outcome{}, false, appErr.Newf(appErr.IsolationUnitError, "no container configured for language %s", spec.ID)
	}
	return b.invoke(ctx, dir, spec.Container, *spec.Compile, nil, b.cfg.CompileTimeout), false, nil
}

func (b *Isolated) Run(ctx context.Context, dir string, spec profile.LanguageSpec, stdin string) engine.Outcome {
	if spec.Container == "" {
		err := appErr.Newf(appErr.IsolationUnitError, "no container configured for language %s", spec.ID)
		return engine.Outcome{Fault: err, Stderr: err.Error()}
	}
	return b.invoke(ctx, dir, spec.Container, spec.Run, []byte(stdin), b.cfg.RunTimeout)
}

// ContainerDir maps a host workspace to its path inside the container.
func (b *Isolated) ContainerDir(dir string) string {
	return path.Join(b.cfg.ContainerWorkDir, filepath.Base(dir))
}

func (b *Isolated) invoke(ctx context.Context, dir, container string, cmd profile.Command, stdin []byte, timeout time.Duration) engine.Outcome {
	workDir := b.ContainerDir(dir)
	wrapped := timeoutArgv(timeout, cmd)

	var inv engine.Invocation
	switch b.cfg.Transport {
	case TransportAPI:
		inv = engine.Invocation{
			Container: container,
			Program:   wrapped[0],
			Args:      wrapped[1:],
			Dir:       workDir,
		}
	default:
		args := make([]string, 0, len(wrapped)+5)
		args = append(args, "exec", "-i", "-w", workDir, container)
		args = append(args, wrapped...)
		inv = engine.Invocation{Program: b.cfg.DockerBinary, Args: args}
	}
	inv.Stdin = stdin
	inv.Timeout = timeout + b.cfg.DeadlineSlack

	out := b.invoker.Invoke(ctx, inv)
	if wrapperFired(out, timeout) {
		out.TimedOut = true
		out.ExitCode = nil
	}
	return out
}

// wrapperFired reports whether the timeout wrapper ended the command: its
// exit status plus a wall time that reached the limit.
func wrapperFired(out engine.Outcome, timeout time.Duration) bool {
	if out.ExitCode == nil || out.Duration < timeout {
		return false
	}
	return *out.ExitCode == timeoutExitStatus || *out.ExitCode == killedExitStatus
}

// timeoutArgv prefixes cmd with `timeout -k 1 <seconds>`, rounding the
// budget up to whole seconds.
func timeoutArgv(timeout time.Duration, cmd profile.Command) []string {
	seconds := int(math.Ceil(timeout.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	argv := []string{"timeout", "-k", "1", strconv.Itoa(seconds)}
	return append(argv, cmd.Argv()...)
}

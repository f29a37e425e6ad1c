// Package backend decides where a compile or run step executes: directly on
// the host inside the workspace, or inside the language's pre-running
// container.
package backend

import (
	"context"
	"fmt"
	"time"

	"bojmock/internal/runner/engine"
	"bojmock/internal/runner/profile"
)

// Mode selects the backend variant.
type Mode string

const (
	ModeDirect   Mode = "direct"
	ModeIsolated Mode = "isolated"
)

// Transport selects how the isolated backend reaches a container.
type Transport string

const (
	// TransportCLI shells out to `docker exec`.
	TransportCLI Transport = "cli"
	// TransportAPI talks to the docker Engine API.
	TransportAPI Transport = "api"
)

const (
	defaultCompileTimeout   = 12 * time.Second
	defaultRunTimeout       = 2 * time.Second
	defaultDeadlineSlack    = 500 * time.Millisecond
	defaultContainerWorkDir = "/workspace"
	defaultDockerBinary     = "docker"
)

// Backend runs the compile and run steps of one language in a workspace.
type Backend interface {
	// Compile runs the compile step. skipped is true for interpreted
	// languages; err reports a misconfigured language, never a failed build.
	Compile(ctx context.Context, dir string, spec profile.LanguageSpec) (out engine.Outcome, skipped bool, err error)
	// Run executes the program once with stdin.
	Run(ctx context.Context, dir string, spec profile.LanguageSpec, stdin string) engine.Outcome
	Mode() Mode
}

// Config is fixed at startup.
type Config struct {
	Mode           Mode
	CompileTimeout time.Duration
	RunTimeout     time.Duration

	// GuardPath wraps direct run steps in the run-guard helper when set.
	GuardPath string
	GuardArgs []string

	Transport        Transport
	ContainerWorkDir string
	// DeadlineSlack is added to the transport deadline on top of the
	// in-container timeout wrapper.
	DeadlineSlack time.Duration
	DockerBinary  string
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeDirect
	}
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = defaultCompileTimeout
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaultRunTimeout
	}
	if c.Transport == "" {
		c.Transport = TransportCLI
	}
	if c.ContainerWorkDir == "" {
		c.ContainerWorkDir = defaultContainerWorkDir
	}
	if c.DeadlineSlack <= 0 {
		c.DeadlineSlack = defaultDeadlineSlack
	}
	if c.DockerBinary == "" {
		c.DockerBinary = defaultDockerBinary
	}
	return c
}

// New builds the configured backend. host starts local processes; exec is
// only needed for the isolated backend over the API transport.
func New(cfg Config, host engine.Invoker, exec engine.Invoker) (Backend, error) {
	cfg = cfg.withDefaults()
	switch cfg.Mode {
	case ModeDirect:
		if host == nil {
			return nil, fmt.Errorf("direct backend requires a process invoker")
		}
		return NewDirect(cfg, host), nil
	case ModeIsolated:
		switch cfg.Transport {
		case TransportCLI:
			if host == nil {
				return nil, fmt.Errorf("isolated backend over cli requires a process invoker")
			}
			return NewIsolated(cfg, host), nil
		case TransportAPI:
			if exec == nil {
				return nil, fmt.Errorf("isolated backend over api requires a container exec invoker")
			}
			return NewIsolated(cfg, exec), nil
		default:
			return nil, fmt.Errorf("unknown isolation transport: %s", cfg.Transport)
		}
	default:
		return nil, fmt.Errorf("unknown runner mode: %s", cfg.Mode)
	}
}

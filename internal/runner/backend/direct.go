package backend

import (
	"context"

	"bojmock/internal/runner/engine"
	"bojmock/internal/runner/profile"
)

// Direct runs toolchains on the host with the workspace as working directory.
type Direct struct {
	cfg     Config
	invoker engine.Invoker
}

func NewDirect(cfg Config, invoker engine.Invoker) *Direct {
	return &Direct{cfg: cfg.withDefaults(), invoker: invoker}
}

func (d *Direct) Mode() Mode { return ModeDirect }

func (d *Direct) Compile(ctx context.Context, dir string, spec profile.LanguageSpec) (engine.Outcome, bool, error) {
	if !spec.Compiled() {
		return engine.Outcome{}, true, nil
	}
	return d.invoker.Invoke(ctx, engine.Invocation{
		Program: spec.Compile.Program,
		Args:    spec.Compile.Args,
		Dir:     dir,
		Timeout: d.cfg.CompileTimeout,
	}), false, nil
}

func (d *Direct) Run(ctx context.Context, dir string, spec profile.LanguageSpec, stdin string) engine.Outcome {
	inv := engine.Invocation{
		Program: spec.Run.Program,
		Args:    spec.Run.Args,
		Dir:     dir,
		Stdin:   []byte(stdin),
		Timeout: d.cfg.RunTimeout,
	}
	if d.cfg.GuardPath != "" {
		args := make([]string, 0, len(d.cfg.GuardArgs)+len(spec.Run.Args)+2)
		args = append(args, d.cfg.GuardArgs...)
		args = append(args, "--")
		args = append(args, spec.Run.Argv()...)
		inv.Program = d.cfg.GuardPath
		inv.Args = args
	}
	return d.invoker.Invoke(ctx, inv)
}

// Package service runs one request end to end: workspace, compile, cases and
// teardown.
package service

import (
	"context"
	"fmt"
	"time"

	"bojmock/internal/runner/backend"
	"bojmock/internal/runner/engine"
	"bojmock/internal/runner/model"
	"bojmock/internal/runner/profile"
	"bojmock/internal/runner/workspace"
	appErr "bojmock/pkg/errors"
	"bojmock/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor is what the hosts depend on.
type Executor interface {
	Execute(ctx context.Context, req model.RunRequest) (model.RunResult, error)
}

// Config holds service dependencies and settings.
type Config struct {
	Languages  profile.Resolver
	Backend    backend.Backend
	Workspaces *workspace.Layout
	// MaxSourceBytes rejects larger sources; zero disables the check.
	MaxSourceBytes int
	// NewRunID overrides run id generation in tests.
	NewRunID func() string
}

// RunService executes run requests.
type RunService struct {
	languages      profile.Resolver
	backend        backend.Backend
	workspaces     *workspace.Layout
	maxSourceBytes int
	newRunID       func() string
}

// NewRunService creates a new run service.
func NewRunService(cfg Config) (*RunService, error) {
	if cfg.Languages == nil {
		return nil, fmt.Errorf("language registry is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("execution backend is required")
	}
	if cfg.Workspaces == nil {
		return nil, fmt.Errorf("workspace layout is required")
	}
	newRunID := cfg.NewRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.NewString() }
	}
	return &RunService{
		languages:      cfg.Languages,
		backend:        cfg.Backend,
		workspaces:     cfg.Workspaces,
		maxSourceBytes: cfg.MaxSourceBytes,
		newRunID:       newRunID,
	}, nil
}

// Execute compiles the source if the language needs it and runs every case in
// order. Errors abort the whole run and carry no partial result; per-case
// failures are reported inside the result.
func (s *RunService) Execute(ctx context.Context, req model.RunRequest) (model.RunResult, error) {
	spec, err := s.languages.Resolve(req.LanguageID)
	if err != nil {
		return model.RunResult{}, err
	}
	if len(req.Cases) == 0 {
		return model.RunResult{}, appErr.New(appErr.InvalidParams).WithMessage("at least one test case is required")
	}
	if s.maxSourceBytes > 0 && len(req.SourceCode) > s.maxSourceBytes {
		return model.RunResult{}, appErr.Newf(appErr.CodeTooLarge, "source exceeds %d bytes", s.maxSourceBytes)
	}

	runID := s.newRunID()
	ctx = logger.WithRun(ctx, runID, req.SessionID, req.ParticipantID)

	ws, err := s.workspaces.Create(workspace.IDs{
		SessionID:     req.SessionID,
		ParticipantID: req.ParticipantID,
		ProblemID:     req.ProblemID,
		RunID:         runID,
	})
	if err != nil {
		logger.Error(ctx, "create workspace failed", zap.Error(err))
		return model.RunResult{}, err
	}
	defer s.cleanup(ctx, ws)

	if _, err := ws.WriteSource(spec.SourceFile, req.SourceCode); err != nil {
		return model.RunResult{}, err
	}

	start := time.Now()
	logger.Info(ctx, "run started",
		zap.String("language", spec.ID),
		zap.Int("cases", len(req.Cases)),
		zap.String("mode", string(s.backend.Mode())),
	)

	compiled, skipped, err := s.backend.Compile(ctx, ws.Dir, spec)
	if err != nil {
		return model.RunResult{}, err
	}
	if !skipped {
		if !compiled.Succeeded() {
			logger.Info(ctx, "compile failed",
				zap.Boolp("timed_out", &compiled.TimedOut),
				zap.Intp("exit_code", compiled.ExitCode),
				zap.Error(compiled.Fault),
			)
			return model.RunResult{}, compileError(compiled)
		}
		logger.Debug(ctx, "compile finished", zap.Duration("duration", compiled.Duration))
	}

	results := make([]model.CaseResult, 0, len(req.Cases))
	for i, c := range req.Cases {
		if err := ctx.Err(); err != nil {
			return model.RunResult{}, appErr.Wrapf(err, appErr.JudgeSystemError, "run interrupted at case %d", i)
		}
		out := s.backend.Run(ctx, ws.Dir, spec, c.Input)
		if out.Fault != nil {
			logger.Warn(ctx, "case could not start", zap.Int("case", i), zap.Error(out.Fault))
		}
		res := Grade(c, out)
		logger.Debug(ctx, "case finished",
			zap.Int("case", i),
			zap.Intp("exit_code", res.ExitCode),
			zap.Bool("timed_out", res.TimedOut),
			zap.Boolp("pass", res.Pass),
			zap.Int64("time_ms", res.TimeMs),
		)
		results = append(results, res)
	}

	result := model.RunResult{RunID: runID, Cases: results}
	logger.Info(ctx, "run finished",
		zap.Bool("all_passed", result.AllPassed()),
		zap.Bool("any_timed_out", result.AnyTimedOut()),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *RunService) cleanup(ctx context.Context, ws *workspace.Workspace) {
	if err := ws.Remove(); err != nil {
		logger.Warn(ctx, "workspace cleanup failed", zap.String("dir", ws.Dir), zap.Error(err))
	}
}

// compileError reports the compiler's stderr, falling back to stdout for
// toolchains that print diagnostics there.
func compileError(out engine.Outcome) error {
	stderr := NormalizeOutput(out.Stderr)
	stdout := NormalizeOutput(out.Stdout)
	msg := stderr
	if msg == "" {
		msg = stdout
	}
	if msg == "" && out.TimedOut {
		msg = "compilation timed out"
	}
	if msg == "" {
		msg = appErr.CompilationError.Message()
	}
	return appErr.New(appErr.CompilationError).
		WithMessage(msg).
		WithDetail("stderr", stderr).
		WithDetail("stdout", stdout).
		WithDetail("timed_out", out.TimedOut)
}

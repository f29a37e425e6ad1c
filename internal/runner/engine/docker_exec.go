package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"bojmock/pkg/utils/logger"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

const execInspectTimeout = 2 * time.Second

// ExecClient is the subset of the docker API client used to exec into a
// running container.
type ExecClient interface {
	ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error)
}

// DockerExecInvoker runs an invocation inside an existing container through
// the docker Engine API.
type DockerExecInvoker struct {
	cfg    Config
	client ExecClient
}

// NewDockerExecInvoker creates an exec invoker over a docker client.
func NewDockerExecInvoker(cfg Config, client ExecClient) (*DockerExecInvoker, error) {
	if client == nil {
		return nil, fmt.Errorf("docker client is required")
	}
	return &DockerExecInvoker{cfg: cfg.withDefaults(), client: client}, nil
}

// Invoke execs into inv.Container. On deadline the attached stream is closed
// and the outcome resolves as timed out; the process inside the container is
// left to the in-container deadline wrapper.
func (d *DockerExecInvoker) Invoke(ctx context.Context, inv Invocation) Outcome {
	start := time.Now()
	if inv.Container == "" {
		return faultOutcome(fmt.Errorf("container is required"), start)
	}

	execCtx := ctx
	var cancel context.CancelFunc = func() {}
	if inv.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	created, err := d.client.ContainerExecCreate(execCtx, inv.Container, types.ExecConfig{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          inv.Argv(),
		WorkingDir:   inv.Dir,
		Env:          inv.Env,
	})
	if err != nil {
		logger.Warn(ctx, "create container exec failed", zap.String("container", inv.Container), zap.Error(err))
		return faultOutcome(fmt.Errorf("create exec in %s: %w", inv.Container, err), start)
	}

	attached, err := d.client.ContainerExecAttach(execCtx, created.ID, types.ExecStartCheck{})
	if err != nil {
		logger.Warn(ctx, "attach container exec failed", zap.String("container", inv.Container), zap.Error(err))
		return faultOutcome(fmt.Errorf("attach exec in %s: %w", inv.Container, err), start)
	}
	defer attached.Close()

	go func() {
		if attached.Conn != nil {
			_, _ = io.Copy(attached.Conn, bytes.NewReader(inv.Stdin))
		}
		_ = attached.CloseWrite()
	}()

	stdout := newCappedBuffer(d.cfg.StdoutMaxBytes)
	stderr := newCappedBuffer(d.cfg.StderrMaxBytes)
	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(stdout, stderr, attached.Reader)
		copyDone <- copyErr
	}()

	timedOut, canceled := false, false
	select {
	case copyErr := <-copyDone:
		if copyErr != nil {
			logger.Debug(ctx, "container exec stream ended with error", zap.Error(copyErr))
		}
	case <-execCtx.Done():
		// the caller giving up is not a verdict on the program
		canceled = ctx.Err() != nil
		timedOut = !canceled
		attached.Close()
		<-copyDone
	}

	out := Outcome{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  time.Since(start),
	}
	if canceled {
		out.Fault = fmt.Errorf("exec in %s interrupted: %w", inv.Container, ctx.Err())
		return out
	}
	if timedOut {
		out.TimedOut = true
		return out
	}

	inspectCtx, cancelInspect := context.WithTimeout(context.WithoutCancel(ctx), execInspectTimeout)
	defer cancelInspect()
	info, err := d.client.ContainerExecInspect(inspectCtx, created.ID)
	if err != nil {
		logger.Warn(ctx, "inspect container exec failed", zap.String("exec_id", created.ID), zap.Error(err))
		out.ExitCode = exitCode(-1)
		return out
	}
	out.ExitCode = exitCode(info.ExitCode)
	return out
}

package engine_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"bojmock/internal/runner/engine"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/stdcopy"
)

type fakeExecClient struct {
	mu        sync.Mutex
	configs   []types.ExecConfig
	container string
	stdout    string
	stderr    string
	exitCode  int
	hang      bool
	createErr error
	gotStdin  chan string
}

func (f *fakeExecClient) ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return types.IDResponse{}, f.createErr
	}
	f.container = container
	f.configs = append(f.configs, config)
	return types.IDResponse{ID: "exec-1"}, nil
}

func (f *fakeExecClient) ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error) {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		if f.hang {
			_, _ = io.Copy(io.Discard, server)
			return
		}
		if f.gotStdin != nil {
			stdin := make([]byte, 64)
			n, _ := server.Read(stdin)
			f.gotStdin <- string(stdin[:n])
		}
		_, _ = stdcopy.NewStdWriter(server, stdcopy.Stdout).Write([]byte(f.stdout))
		_, _ = stdcopy.NewStdWriter(server, stdcopy.Stderr).Write([]byte(f.stderr))
	}()
	return types.HijackedResponse{Conn: client, Reader: bufio.NewReader(client)}, nil
}

func (f *fakeExecClient) ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error) {
	return types.ContainerExecInspect{ExecID: execID, ExitCode: f.exitCode}, nil
}

func TestDockerExecInvokerCapturesStreams(t *testing.T) {
	fake := &fakeExecClient{stdout: "2\n", stderr: "warn\n", exitCode: 0, gotStdin: make(chan string, 1)}
	inv, err := engine.NewDockerExecInvoker(engine.Config{}, fake)
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}

	out := inv.Invoke(context.Background(), engine.Invocation{
		Container: "boj-mock-python",
		Program:   "timeout",
		Args:      []string{"-k", "1", "2", "python3", "main.py"},
		Dir:       "/workspace/run-1",
		Stdin:     []byte("1 1\n"),
		Timeout:   2 * time.Second,
	})

	if out.Fault != nil || out.TimedOut {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.ExitCode == nil || *out.ExitCode != 0 {
		t.Fatalf("unexpected exit code: %v", out.ExitCode)
	}
	if out.Stdout != "2\n" || out.Stderr != "warn\n" {
		t.Fatalf("unexpected streams: %q %q", out.Stdout, out.Stderr)
	}
	if got := <-fake.gotStdin; got != "1 1\n" {
		t.Fatalf("stdin = %q", got)
	}
	cfg := fake.configs[0]
	if fake.container != "boj-mock-python" || cfg.WorkingDir != "/workspace/run-1" {
		t.Fatalf("unexpected exec target: %s %+v", fake.container, cfg)
	}
	wantCmd := []string{"timeout", "-k", "1", "2", "python3", "main.py"}
	if !reflect.DeepEqual(cfg.Cmd, wantCmd) {
		t.Fatalf("cmd = %v, want %v", cfg.Cmd, wantCmd)
	}
	if !cfg.AttachStdin || !cfg.AttachStdout || !cfg.AttachStderr {
		t.Fatalf("streams must be attached: %+v", cfg)
	}
}

func TestDockerExecInvokerNonZeroExit(t *testing.T) {
	fake := &fakeExecClient{stderr: "Traceback\n", exitCode: 1}
	inv, _ := engine.NewDockerExecInvoker(engine.Config{}, fake)

	out := inv.Invoke(context.Background(), engine.Invocation{Container: "c", Program: "python3", Timeout: time.Second})
	if out.ExitCode == nil || *out.ExitCode != 1 {
		t.Fatalf("expected exit 1, got %v", out.ExitCode)
	}
}

func TestDockerExecInvokerTimeout(t *testing.T) {
	fake := &fakeExecClient{hang: true}
	inv, _ := engine.NewDockerExecInvoker(engine.Config{}, fake)

	start := time.Now()
	out := inv.Invoke(context.Background(), engine.Invocation{Container: "c", Program: "sleep", Args: []string{"10"}, Timeout: 100 * time.Millisecond})
	if !out.TimedOut || out.ExitCode != nil {
		t.Fatalf("expected timeout outcome: %+v", out)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout took too long")
	}
}

func TestDockerExecInvokerCallerCancelIsNotTimeout(t *testing.T) {
	fake := &fakeExecClient{hang: true}
	inv, _ := engine.NewDockerExecInvoker(engine.Config{}, fake)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	out := inv.Invoke(ctx, engine.Invocation{Container: "c", Program: "sleep", Args: []string{"10"}, Timeout: 5 * time.Second})
	if out.TimedOut || out.ExitCode != nil {
		t.Fatalf("cancel must not look like a timeout: %+v", out)
	}
	if !errors.Is(out.Fault, context.Canceled) {
		t.Fatalf("fault = %v, want context.Canceled", out.Fault)
	}
}

func TestDockerExecInvokerCreateFailure(t *testing.T) {
	fake := &fakeExecClient{createErr: errors.New("No such container: c")}
	inv, _ := engine.NewDockerExecInvoker(engine.Config{}, fake)

	out := inv.Invoke(context.Background(), engine.Invocation{Container: "c", Program: "python3", Timeout: time.Second})
	if out.Fault == nil || out.ExitCode != nil {
		t.Fatalf("expected fault: %+v", out)
	}
}

func TestDockerExecInvokerRequiresContainer(t *testing.T) {
	inv, _ := engine.NewDockerExecInvoker(engine.Config{}, &fakeExecClient{})
	out := inv.Invoke(context.Background(), engine.Invocation{Program: "python3"})
	if out.Fault == nil {
		t.Fatalf("expected fault without container")
	}
	if _, err := engine.NewDockerExecInvoker(engine.Config{}, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

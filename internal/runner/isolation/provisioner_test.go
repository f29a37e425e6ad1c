package isolation

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"bojmock/internal/runner/profile"
	appErr "bojmock/pkg/errors"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeDockerClient struct {
	mu         sync.Mutex
	containers map[string]bool // name -> running
	images     map[string]bool
	created    []createCall
	started    []string
	pulls      []string
	startErr   error
}

type createCall struct {
	name       string
	config     *container.Config
	hostConfig *container.HostConfig
}

func newFakeDockerClient() *fakeDockerClient {
	return &fakeDockerClient{containers: map[string]bool{}, images: map[string]bool{}}
}

func (f *fakeDockerClient) ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	running, ok := f.containers[id]
	if !ok {
		return types.ContainerJSON{}, errdefs.NotFound(errors.New("No such container: " + id))
	}
	return types.ContainerJSON{ContainerJSONBase: &types.ContainerJSONBase{
		Name:  "/" + id,
		State: &types.ContainerState{Running: running},
	}}, nil
}

func (f *fakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.images[config.Image] {
		return container.CreateResponse{}, errdefs.NotFound(errors.New("No such image: " + config.Image))
	}
	f.created = append(f.created, createCall{name: name, config: config, hostConfig: hostConfig})
	f.containers[name] = false
	return container.CreateResponse{ID: name}, nil
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, id string, options types.ContainerStartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, id)
	f.containers[id] = true
	return nil
}

func (f *fakeDockerClient) ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, ref)
	f.images[ref] = true
	return io.NopCloser(bytes.NewReader([]byte(`{"status":"done"}`))), nil
}

func TestUnitsFromLanguages(t *testing.T) {
	units := UnitsFromLanguages(profile.DefaultCatalog())
	if len(units) != 6 {
		t.Fatalf("expected 6 units, got %d", len(units))
	}
	if units[0].Name != "boj-mock-c" || units[0].Image != "gcc:13" {
		t.Fatalf("units not sorted: %+v", units[0])
	}

	dup := []profile.LanguageSpec{
		{ID: "c", Container: "shared", Image: "gcc:13"},
		{ID: "cpp", Container: "shared", Image: "gcc:14"},
		{ID: "host"},
	}
	units = UnitsFromLanguages(dup)
	if len(units) != 1 || units[0].Image != "gcc:13" {
		t.Fatalf("expected one deduplicated unit, got %+v", units)
	}
}

func TestEnsureStates(t *testing.T) {
	client := newFakeDockerClient()
	client.containers["running"] = true
	client.containers["stopped"] = false
	client.images["python:3.11-alpine"] = true

	p, err := NewProvisioner(Config{HostWorkRoot: "/srv/runs"}, client)
	if err != nil {
		t.Fatalf("NewProvisioner: %v", err)
	}
	statuses, err := p.Ensure(context.Background(), []Unit{
		{Name: "running", Image: "x"},
		{Name: "stopped", Image: "x"},
		{Name: "missing", Image: "python:3.11-alpine"},
	})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	want := []State{StateRunning, StateStarted, StateCreated}
	for i, s := range statuses {
		if s.State != want[i] {
			t.Fatalf("%s: state = %s, want %s", s.Unit.Name, s.State, want[i])
		}
	}

	call := client.created[0]
	if call.name != "missing" || call.config.Image != "python:3.11-alpine" {
		t.Fatalf("unexpected create: %+v", call)
	}
	if got := call.config.Cmd; len(got) != 2 || got[0] != "sleep" || got[1] != "infinity" {
		t.Fatalf("unexpected cmd: %v", got)
	}
	hc := call.hostConfig
	if hc.NetworkMode != "none" || hc.NanoCPUs != defaultNanoCPUs || hc.Memory != defaultMemoryBytes {
		t.Fatalf("unexpected limits: %+v", hc.Resources)
	}
	if len(hc.Binds) != 1 || hc.Binds[0] != "/srv/runs:/workspace" {
		t.Fatalf("unexpected binds: %v", hc.Binds)
	}
}

func TestEnsurePullsMissingImage(t *testing.T) {
	client := newFakeDockerClient()
	p, _ := NewProvisioner(Config{HostWorkRoot: "/srv/runs", PullMissing: true}, client)

	statuses, err := p.Ensure(context.Background(), []Unit{{Name: "boj-mock-node", Image: "node:20-alpine"}})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if statuses[0].State != StateCreated || len(client.pulls) != 1 {
		t.Fatalf("expected pull then create, got %+v pulls=%v", statuses[0], client.pulls)
	}
}

func TestEnsureReportsFailures(t *testing.T) {
	client := newFakeDockerClient()
	client.containers["ok"] = true
	p, _ := NewProvisioner(Config{HostWorkRoot: "/srv/runs"}, client)

	statuses, err := p.Ensure(context.Background(), []Unit{
		{Name: "no-image", Image: "absent:latest"},
		{Name: "ok"},
		{Name: "no-image-configured"},
	})
	if appErr.GetCode(err) != appErr.IsolationUnitError {
		t.Fatalf("expected isolation unit error, got %v", err)
	}
	if statuses[0].State != StateFailed || statuses[1].State != StateRunning || statuses[2].State != StateFailed {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
}

func TestNewProvisionerValidates(t *testing.T) {
	if _, err := NewProvisioner(Config{HostWorkRoot: "/x"}, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewProvisioner(Config{}, newFakeDockerClient()); err == nil {
		t.Fatalf("expected error for empty work root")
	}
}

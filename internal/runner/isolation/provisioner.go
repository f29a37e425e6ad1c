// Package isolation provisions the long-lived per-language containers used by
// the isolated backend.
package isolation

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"

	"bojmock/internal/runner/profile"
	appErr "bojmock/pkg/errors"
	"bojmock/pkg/utils/logger"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

const (
	defaultNanoCPUs    int64 = 1_000_000_000
	defaultMemoryBytes int64 = 512 * 1024 * 1024
	defaultNetworkMode       = "none"
)

// DockerClient is the subset of the docker API client used for provisioning.
type DockerClient interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
}

// Unit is one isolation container.
type Unit struct {
	Name  string
	Image string
}

// State is what Ensure did for a unit.
type State string

const (
	StateRunning State = "running"
	StateStarted State = "started"
	StateCreated State = "created"
	StateFailed  State = "failed"
)

// Status reports one unit after Ensure.
type Status struct {
	Unit  Unit
	State State
	Err   error
}

// Config describes the containers to create.
type Config struct {
	// HostWorkRoot is bind mounted at ContainerWorkDir.
	HostWorkRoot     string
	ContainerWorkDir string
	NanoCPUs         int64
	MemoryBytes      int64
	NetworkMode      string
	// PullMissing pulls the image when creation fails for a missing image.
	PullMissing bool
}

func (c Config) withDefaults() Config {
	if c.ContainerWorkDir == "" {
		c.ContainerWorkDir = "/workspace"
	}
	if c.NanoCPUs <= 0 {
		c.NanoCPUs = defaultNanoCPUs
	}
	if c.MemoryBytes <= 0 {
		c.MemoryBytes = defaultMemoryBytes
	}
	if c.NetworkMode == "" {
		c.NetworkMode = defaultNetworkMode
	}
	return c
}

// Provisioner creates and starts missing isolation units.
type Provisioner struct {
	cfg    Config
	client DockerClient
}

func NewProvisioner(cfg Config, client DockerClient) (*Provisioner, error) {
	if client == nil {
		return nil, fmt.Errorf("docker client is required")
	}
	if cfg.HostWorkRoot == "" {
		return nil, fmt.Errorf("host work root is required")
	}
	return &Provisioner{cfg: cfg.withDefaults(), client: client}, nil
}

// UnitsFromLanguages returns one unit per distinct container, sorted by name.
func UnitsFromLanguages(langs []profile.LanguageSpec) []Unit {
	seen := make(map[string]Unit)
	for _, l := range langs {
		if l.Container == "" {
			continue
		}
		if _, ok := seen[l.Container]; !ok {
			seen[l.Container] = Unit{Name: l.Container, Image: l.Image}
		}
	}
	units := make([]Unit, 0, len(seen))
	for _, u := range seen {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	return units
}

// Ensure makes every unit running. It keeps going after a failure and
// returns an IsolationUnitError covering all failed units.
func (p *Provisioner) Ensure(ctx context.Context, units []Unit) ([]Status, error) {
	statuses := make([]Status, 0, len(units))
	var failed []error
	for _, u := range units {
		state, err := p.ensureOne(ctx, u)
		if err != nil {
			logger.Error(ctx, "provision isolation unit failed", zap.String("container", u.Name), zap.Error(err))
			failed = append(failed, fmt.Errorf("%s: %w", u.Name, err))
			statuses = append(statuses, Status{Unit: u, State: StateFailed, Err: err})
			continue
		}
		logger.Info(ctx, "isolation unit ready", zap.String("container", u.Name), zap.String("state", string(state)))
		statuses = append(statuses, Status{Unit: u, State: state})
	}
	if len(failed) > 0 {
		return statuses, appErr.Wrapf(stderrors.Join(failed...), appErr.IsolationUnitError, "%d of %d isolation units failed", len(failed), len(units))
	}
	return statuses, nil
}

func (p *Provisioner) ensureOne(ctx context.Context, u Unit) (State, error) {
	info, err := p.client.ContainerInspect(ctx, u.Name)
	if err == nil {
		if info.ContainerJSONBase != nil && info.State != nil && info.State.Running {
			return StateRunning, nil
		}
		if err := p.client.ContainerStart(ctx, u.Name, types.ContainerStartOptions{}); err != nil {
			return StateFailed, fmt.Errorf("start: %w", err)
		}
		return StateStarted, nil
	}
	if !dockerclient.IsErrNotFound(err) {
		return StateFailed, fmt.Errorf("inspect: %w", err)
	}
	if u.Image == "" {
		return StateFailed, fmt.Errorf("no image configured")
	}

	created, err := p.create(ctx, u)
	if err != nil && p.cfg.PullMissing && dockerclient.IsErrNotFound(err) {
		if pullErr := p.pull(ctx, u.Image); pullErr != nil {
			return StateFailed, fmt.Errorf("pull %s: %w", u.Image, pullErr)
		}
		created, err = p.create(ctx, u)
	}
	if err != nil {
		return StateFailed, fmt.Errorf("create: %w", err)
	}
	if err := p.client.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return StateFailed, fmt.Errorf("start: %w", err)
	}
	return StateCreated, nil
}

func (p *Provisioner) create(ctx context.Context, u Unit) (container.CreateResponse, error) {
	return p.client.ContainerCreate(ctx,
		&container.Config{
			Image:      u.Image,
			Cmd:        []string{"sleep", "infinity"},
			WorkingDir: p.cfg.ContainerWorkDir,
			Tty:        false,
			Labels:     map[string]string{"bojmock.role": "isolation-unit"},
		},
		&container.HostConfig{
			NetworkMode: container.NetworkMode(p.cfg.NetworkMode),
			Binds:       []string{p.cfg.HostWorkRoot + ":" + p.cfg.ContainerWorkDir},
			Resources: container.Resources{
				NanoCPUs: p.cfg.NanoCPUs,
				Memory:   p.cfg.MemoryBytes,
			},
		},
		nil, nil, u.Name)
}

func (p *Provisioner) pull(ctx context.Context, image string) error {
	logger.Info(ctx, "pulling image", zap.String("image", image))
	rc, err := p.client.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

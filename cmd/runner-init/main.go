// Command runner-init makes sure the isolation container of every language
// exists and runs, creating the missing ones.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bojmock/internal/runner/isolation"
	"bojmock/internal/runner/profile"
	"bojmock/pkg/utils/logger"

	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/runner_service.yaml"
	defaultEnvFile    = ".env"
	defaultTimeout    = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to runner config file")
	envFile := flag.String("env", defaultEnvFile, "Path to .env file with overrides")
	pull := flag.Bool("pull", true, "Pull images that are missing locally")
	timeout := flag.Duration("timeout", defaultTimeout, "Overall deadline")
	flag.Parse()

	cfg, err := loadInitConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, *pull); err != nil {
		logger.Error(ctx, "runner init failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *initConfig, pull bool) error {
	specs, err := cfg.languages()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.hostWorkRoot(), 0o755); err != nil {
		return fmt.Errorf("create host work root: %w", err)
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Isolation.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.Isolation.DockerHost))
	}
	docker, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return fmt.Errorf("init docker client: %w", err)
	}
	defer func() {
		_ = docker.Close()
	}()

	prov, err := isolation.NewProvisioner(isolation.Config{
		HostWorkRoot:     cfg.hostWorkRoot(),
		ContainerWorkDir: cfg.Isolation.ContainerWorkDir,
		NanoCPUs:         cfg.Isolation.NanoCPUs,
		MemoryBytes:      cfg.Isolation.MemoryMB * 1024 * 1024,
		NetworkMode:      cfg.Isolation.NetworkMode,
		PullMissing:      pull,
	}, docker)
	if err != nil {
		return err
	}

	statuses, err := prov.Ensure(ctx, isolation.UnitsFromLanguages(specs))
	for _, st := range statuses {
		line := fmt.Sprintf("%-20s %-8s %s", st.Unit.Name, st.State, st.Unit.Image)
		if st.Err != nil {
			line += "  " + st.Err.Error()
		}
		fmt.Println(line)
	}
	return err
}

// languages returns the catalog with container overrides applied.
func (c *initConfig) languages() ([]profile.LanguageSpec, error) {
	specs := profile.DefaultCatalog()
	if c.Language.Catalog != "" {
		loaded, err := profile.LoadCatalog(c.Language.Catalog)
		if err != nil {
			return nil, err
		}
		specs = loaded
	}
	return profile.OverrideContainers(specs, c.Isolation.Containers), nil
}

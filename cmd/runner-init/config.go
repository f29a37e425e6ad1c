package main

import (
	"fmt"
	"os"

	"bojmock/internal/runner/profile"
	"bojmock/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultWorkRoot = "/tmp/boj-mock-run"

// initConfig reads the sections of the runner-service file that describe the
// isolation units.
type initConfig struct {
	Logger logger.Config `yaml:"logger"`
	Runner struct {
		WorkRoot string `yaml:"workRoot"`
	} `yaml:"runner"`
	Isolation struct {
		ContainerWorkDir string            `yaml:"containerWorkDir"`
		HostWorkRoot     string            `yaml:"hostWorkRoot"`
		DockerHost       string            `yaml:"dockerHost"`
		Containers       map[string]string `yaml:"containers"`
		NanoCPUs         int64             `yaml:"nanoCPUs"`
		MemoryMB         int64             `yaml:"memoryMB"`
		NetworkMode      string            `yaml:"networkMode"`
	} `yaml:"isolation"`
	Language struct {
		Catalog string `yaml:"catalog"`
	} `yaml:"language"`
}

func loadInitConfig(path, envFile string) (*initConfig, error) {
	var cfg initConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file failed: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file failed: %w", err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file failed: %w", err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if cfg.Runner.WorkRoot == "" {
		cfg.Runner.WorkRoot = defaultWorkRoot
	}
	return &cfg, nil
}

func (c *initConfig) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("RUNNER_WORK_ROOT"); ok && v != "" {
		c.Runner.WorkRoot = v
	}
	if v, ok := lookup("DOCKER_WORKDIR"); ok && v != "" {
		c.Isolation.ContainerWorkDir = v
	}
	for lang, key := range profile.ContainerEnvVars {
		if v, ok := lookup(key); ok && v != "" {
			if c.Isolation.Containers == nil {
				c.Isolation.Containers = make(map[string]string)
			}
			c.Isolation.Containers[lang] = v
		}
	}
}

// hostWorkRoot is the directory bind mounted into every unit.
func (c *initConfig) hostWorkRoot() string {
	if c.Isolation.HostWorkRoot != "" {
		return c.Isolation.HostWorkRoot
	}
	return c.Runner.WorkRoot
}

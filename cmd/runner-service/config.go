package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bojmock/internal/common/cache"
	commonmw "bojmock/internal/common/http/middleware"
	"bojmock/internal/common/mq"
	"bojmock/internal/runner/backend"
	"bojmock/internal/runner/engine"
	"bojmock/internal/runner/governor"
	"bojmock/internal/runner/profile"
	"bojmock/pkg/utils/logger"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:5179"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultWorkRoot        = "/tmp/boj-mock-run"
	defaultMaxSourceBytes  = 256 * 1024
	defaultSlotTTL         = 10 * time.Minute
	defaultRequestTopic    = "runner.requests"
	defaultResultTopic     = "runner.results"

	storeMemory = "memory"
	storeRedis  = "redis"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`

	CORS commonmw.CORSConfig `yaml:"cors"`
}

// RunnerConfig holds execution settings.
type RunnerConfig struct {
	Mode           string        `yaml:"mode"`
	WorkRoot       string        `yaml:"workRoot"`
	CompileTimeout time.Duration `yaml:"compileTimeout"`
	RunTimeout     time.Duration `yaml:"runTimeout"`
	MaxStdoutBytes int64         `yaml:"maxStdoutBytes"`
	MaxStderrBytes int64         `yaml:"maxStderrBytes"`
	MaxSourceBytes int           `yaml:"maxSourceBytes"`
	GuardPath      string        `yaml:"guardPath"`
	GuardArgs      []string      `yaml:"guardArgs"`
}

// IsolationConfig holds settings of the isolated backend.
type IsolationConfig struct {
	Transport        string        `yaml:"transport"`
	ContainerWorkDir string        `yaml:"containerWorkDir"`
	HostWorkRoot     string        `yaml:"hostWorkRoot"`
	DeadlineSlack    time.Duration `yaml:"deadlineSlack"`
	DockerBinary     string        `yaml:"dockerBinary"`
	DockerHost       string        `yaml:"dockerHost"`
	// Containers overrides the container of a language id.
	Containers map[string]string `yaml:"containers"`
}

// GovernorConfig holds admission settings.
type GovernorConfig struct {
	Store         string            `yaml:"store"`
	MaxPerSession int               `yaml:"maxPerSession"`
	MinInterval   time.Duration     `yaml:"minInterval"`
	StoreTimeout  time.Duration     `yaml:"storeTimeout"`
	SlotTTL       time.Duration     `yaml:"slotTTL"`
	Redis         cache.RedisConfig `yaml:"redis"`
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	ClientID      string        `yaml:"clientID"`
	MinBytes      int           `yaml:"minBytes"`
	MaxBytes      int           `yaml:"maxBytes"`
	MaxWait       time.Duration `yaml:"maxWait"`
	BatchSize     int           `yaml:"batchSize"`
	BatchTimeout  time.Duration `yaml:"batchTimeout"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	RequiredAcks  int           `yaml:"requiredAcks"`
	Compression   string        `yaml:"compression"`
	RequestTopic  string        `yaml:"requestTopic"`
	ResultTopic   string        `yaml:"resultTopic"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Concurrency   int           `yaml:"concurrency"`
	MaxRetries    int           `yaml:"maxRetries"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
	DeadLetter    string        `yaml:"deadLetterTopic"`
	MessageTTL    time.Duration `yaml:"messageTTL"`
}

// LanguageConfig replaces the built-in catalog when Catalog is set.
type LanguageConfig struct {
	Catalog string `yaml:"catalog"`
}

// AppConfig holds runner-service config.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    logger.Config   `yaml:"logger"`
	Runner    RunnerConfig    `yaml:"runner"`
	Isolation IsolationConfig `yaml:"isolation"`
	Governor  GovernorConfig  `yaml:"governor"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Language  LanguageConfig  `yaml:"language"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the YAML file, then applies .env and process
// environment overrides, then defaults.
func loadAppConfig(path, envFile string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file failed: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Server.Addr = "0.0.0.0:" + v
	}
	if v, ok := lookup("RUNNER_MODE"); ok && v != "" {
		cfg.Runner.Mode = v
	}
	if v, ok := lookup("RUNNER_WORK_ROOT"); ok && v != "" {
		cfg.Runner.WorkRoot = v
	}
	if v, ok := lookup("DOCKER_WORKDIR"); ok && v != "" {
		cfg.Isolation.ContainerWorkDir = v
	}

	millis := []struct {
		key string
		dst *time.Duration
	}{
		{"RUN_TIMEOUT_MS", &cfg.Runner.RunTimeout},
		{"COMPILE_TIMEOUT_MS", &cfg.Runner.CompileTimeout},
	}
	for _, m := range millis {
		v, ok := lookup(m.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s: %q", m.key, v)
		}
		*m.dst = time.Duration(n) * time.Millisecond
	}

	sizes := []struct {
		key string
		dst *int64
	}{
		{"MAX_STDOUT_BYTES", &cfg.Runner.MaxStdoutBytes},
		{"MAX_STDERR_BYTES", &cfg.Runner.MaxStderrBytes},
	}
	for _, s := range sizes {
		v, ok := lookup(s.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s: %q", s.key, v)
		}
		*s.dst = n
	}

	if v, ok := lookup("MAX_CONCURRENT_RUNS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_CONCURRENT_RUNS: %q", v)
		}
		cfg.Governor.MaxPerSession = n
	}

	for lang, key := range profile.ContainerEnvVars {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		if cfg.Isolation.Containers == nil {
			cfg.Isolation.Containers = make(map[string]string)
		}
		cfg.Isolation.Containers[lang] = v
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	cfg.Runner.Mode = normalizeMode(cfg.Runner.Mode)
	if cfg.Runner.WorkRoot == "" {
		cfg.Runner.WorkRoot = defaultWorkRoot
	}
	if cfg.Runner.MaxSourceBytes == 0 {
		cfg.Runner.MaxSourceBytes = defaultMaxSourceBytes
	}
	if cfg.Isolation.Transport == "" {
		cfg.Isolation.Transport = string(backend.TransportCLI)
	}
	if cfg.Isolation.HostWorkRoot == "" {
		cfg.Isolation.HostWorkRoot = cfg.Runner.WorkRoot
	}
	if cfg.Governor.Store == "" {
		cfg.Governor.Store = storeMemory
	}
	if cfg.Governor.SlotTTL == 0 {
		cfg.Governor.SlotTTL = defaultSlotTTL
	}
	cfg.Governor.Redis = cfg.Governor.Redis.WithDefaults()
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = defaultRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = defaultResultTopic
	}
}

// bindMountMismatch reports whether isolated runs would write workspaces
// outside the directory the containers see. It is legitimate only when the
// service itself runs in a container with the host root mounted elsewhere.
func (c *AppConfig) bindMountMismatch() bool {
	if c.Runner.Mode != string(backend.ModeIsolated) {
		return false
	}
	return filepath.Clean(c.Runner.WorkRoot) != filepath.Clean(c.Isolation.HostWorkRoot)
}

// normalizeMode accepts the legacy "local" and "docker" names.
func normalizeMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "local", string(backend.ModeDirect):
		return string(backend.ModeDirect)
	case "docker", string(backend.ModeIsolated):
		return string(backend.ModeIsolated)
	default:
		return mode
	}
}

func validate(cfg *AppConfig) error {
	switch backend.Mode(cfg.Runner.Mode) {
	case backend.ModeDirect, backend.ModeIsolated:
	default:
		return fmt.Errorf("unknown runner mode: %s", cfg.Runner.Mode)
	}
	switch backend.Transport(cfg.Isolation.Transport) {
	case backend.TransportCLI, backend.TransportAPI:
	default:
		return fmt.Errorf("unknown isolation transport: %s", cfg.Isolation.Transport)
	}
	switch cfg.Governor.Store {
	case storeMemory:
	case storeRedis:
		if cfg.Governor.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis governor store")
		}
	default:
		return fmt.Errorf("unknown governor store: %s", cfg.Governor.Store)
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}
	return nil
}

// languages loads the catalog and applies container overrides.
func (c *AppConfig) languages() ([]profile.LanguageSpec, error) {
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

func (c *AppConfig) engineConfig() engine.Config {
	return engine.Config{
		StdoutMaxBytes: c.Runner.MaxStdoutBytes,
		StderrMaxBytes: c.Runner.MaxStderrBytes,
	}
}

func (c *AppConfig) backendConfig() backend.Config {
	return backend.Config{
		Mode:             backend.Mode(c.Runner.Mode),
		CompileTimeout:   c.Runner.CompileTimeout,
		RunTimeout:       c.Runner.RunTimeout,
		GuardPath:        c.Runner.GuardPath,
		GuardArgs:        c.Runner.GuardArgs,
		Transport:        backend.Transport(c.Isolation.Transport),
		ContainerWorkDir: c.Isolation.ContainerWorkDir,
		DeadlineSlack:    c.Isolation.DeadlineSlack,
		DockerBinary:     c.Isolation.DockerBinary,
	}
}

func (g GovernorConfig) toGovernorConfig() governor.Config {
	return governor.Config{
		MaxPerSession: g.MaxPerSession,
		MinInterval:   g.MinInterval,
		StoreTimeout:  g.StoreTimeout,
	}
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	cfg := mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		MinBytes:     k.MinBytes,
		MaxBytes:     k.MaxBytes,
		MaxWait:      k.MaxWait,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
	}
	cfg.Compression = parseCompression(k.Compression)
	return cfg
}

func (k KafkaConfig) subscribeOptions() *mq.SubscribeOptions {
	return &mq.SubscribeOptions{
		ConsumerGroup:   k.ConsumerGroup,
		Concurrency:     k.Concurrency,
		MaxRetries:      k.MaxRetries,
		RetryDelay:      k.RetryDelay,
		DeadLetterTopic: k.DeadLetter,
		MessageTTL:      k.MessageTTL,
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

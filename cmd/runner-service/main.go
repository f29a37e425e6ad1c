package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bojmock/internal/common/cache"
	commonmw "bojmock/internal/common/http/middleware"
	"bojmock/internal/common/mq"
	"bojmock/internal/runner/backend"
	"bojmock/internal/runner/consumer"
	"bojmock/internal/runner/controller"
	"bojmock/internal/runner/engine"
	"bojmock/internal/runner/governor"
	"bojmock/internal/runner/profile"
	"bojmock/internal/runner/service"
	"bojmock/internal/runner/workspace"
	"bojmock/pkg/utils/logger"

	"github.com/docker/docker/client"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/runner_service.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envFile := flag.String("env", defaultEnvFile, "Path to .env file with overrides")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "runner service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	specs, err := appCfg.languages()
	if err != nil {
		return fmt.Errorf("load language catalog: %w", err)
	}
	registry, err := profile.NewRegistry(specs)
	if err != nil {
		return fmt.Errorf("init language registry: %w", err)
	}

	layout, err := workspace.NewLayout(appCfg.Runner.WorkRoot)
	if err != nil {
		return fmt.Errorf("init work root: %w", err)
	}

	execBackend, closeDocker, err := buildBackend(appCfg)
	if err != nil {
		return fmt.Errorf("init execution backend: %w", err)
	}
	defer closeDocker()

	runSvc, err := service.NewRunService(service.Config{
		Languages:      registry,
		Backend:        execBackend,
		Workspaces:     layout,
		MaxSourceBytes: appCfg.Runner.MaxSourceBytes,
	})
	if err != nil {
		return fmt.Errorf("init run service: %w", err)
	}

	store, closeStore, err := buildStore(ctx, appCfg.Governor)
	if err != nil {
		return fmt.Errorf("init governor store: %w", err)
	}
	defer closeStore()
	gov, err := governor.New(appCfg.Governor.toGovernorConfig(), store)
	if err != nil {
		return fmt.Errorf("init governor: %w", err)
	}

	logger.Info(ctx, "runner configured",
		zap.String("mode", string(execBackend.Mode())),
		zap.String("work_root", layout.Root),
		zap.Strings("languages", registry.IDs()),
		zap.String("governor_store", appCfg.Governor.Store),
		zap.Int("max_per_session", gov.Limits().MaxPerSession),
		zap.Duration("min_interval", gov.Limits().MinInterval),
	)
	if appCfg.bindMountMismatch() {
		logger.Warn(ctx, "work root differs from the root mounted into the containers",
			zap.String("work_root", appCfg.Runner.WorkRoot),
			zap.String("host_work_root", appCfg.Isolation.HostWorkRoot),
		)
	}

	var queue *mq.KafkaQueue
	if appCfg.Kafka.Enabled {
		queue, err = startConsumer(ctx, appCfg.Kafka, runSvc, gov)
		if err != nil {
			return err
		}
		defer func() {
			_ = queue.Close()
		}()
	}

	httpServer := buildHTTPServer(appCfg.Server, controller.NewRunController(runSvc, gov, registry))
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "runner http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	if queue != nil {
		_ = queue.Stop()
	}
	return nil
}

func buildBackend(appCfg *AppConfig) (backend.Backend, func(), error) {
	noop := func() {}
	engCfg := appCfg.engineConfig()
	host := engine.NewProcessInvoker(engCfg)
	cfg := appCfg.backendConfig()
	if cfg.Mode != backend.ModeIsolated || cfg.Transport != backend.TransportAPI {
		b, err := backend.New(cfg, host, nil)
		return b, noop, err
	}

	docker, err := newDockerClient(appCfg.Isolation.DockerHost)
	if err != nil {
		return nil, noop, err
	}
	execInvoker, err := engine.NewDockerExecInvoker(engCfg, docker)
	if err != nil {
		_ = docker.Close()
		return nil, noop, err
	}
	b, err := backend.New(cfg, host, execInvoker)
	if err != nil {
		_ = docker.Close()
		return nil, noop, err
	}
	return b, func() { _ = docker.Close() }, nil
}

func newDockerClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	docker, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("init docker client: %w", err)
	}
	return docker, nil
}

func buildStore(ctx context.Context, cfg GovernorConfig) (governor.Store, func(), error) {
	if cfg.Store != storeRedis {
		return governor.NewMemoryStore(), func() {}, nil
	}
	redisCache, err := cache.DialRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, func() {}, err
	}
	store, err := governor.NewRedisStore(redisCache, cfg.SlotTTL)
	if err != nil {
		_ = redisCache.Close()
		return nil, func() {}, err
	}
	logger.Info(ctx, "governor uses redis", zap.String("addr", cfg.Redis.Addr))
	return store, func() { _ = redisCache.Close() }, nil
}

func startConsumer(ctx context.Context, cfg KafkaConfig, runs service.Executor, gov *governor.Governor) (*mq.KafkaQueue, error) {
	queue, err := mq.NewKafkaQueue(cfg.toMQConfig())
	if err != nil {
		return nil, fmt.Errorf("init kafka: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := queue.Ping(pingCtx); err != nil {
		// the reader keeps retrying; a broker that comes up later still works
		logger.Warn(ctx, "kafka broker unreachable", zap.Strings("brokers", cfg.Brokers), zap.Error(err))
	}
	cancel()
	handler, err := consumer.NewRunConsumer(consumer.Config{
		Runs:        runs,
		Governor:    gov,
		Publisher:   queue,
		ResultTopic: cfg.ResultTopic,
	})
	if err != nil {
		_ = queue.Close()
		return nil, fmt.Errorf("init run consumer: %w", err)
	}
	if err := queue.Subscribe(ctx, cfg.RequestTopic, handler.HandleMessage, cfg.subscribeOptions()); err != nil {
		_ = queue.Close()
		return nil, fmt.Errorf("subscribe kafka: %w", err)
	}
	if err := queue.Start(); err != nil {
		_ = queue.Close()
		return nil, fmt.Errorf("start kafka consumer: %w", err)
	}
	logger.Info(ctx, "kafka consumer started",
		zap.String("request_topic", cfg.RequestTopic),
		zap.String("result_topic", cfg.ResultTopic),
	)
	return queue, nil
}

func buildHTTPServer(cfg ServerConfig, runs *controller.RunController) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.CORSMiddleware(cfg.CORS))
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())
	controller.RegisterRoutes(router, runs)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

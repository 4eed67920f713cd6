package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"realtime-chat/client/internal/service"
	"realtime-chat/client/internal/ws"
	"realtime-chat/client/pkg/cache"
	"realtime-chat/client/pkg/config"
	"realtime-chat/client/pkg/health"
	"realtime-chat/client/pkg/logger"
	"realtime-chat/client/pkg/resilience"
	"realtime-chat/client/pkg/secrets"
	"realtime-chat/client/shared/observability"
	"realtime-chat/client/shared/redis"
)

const (
	meterName         = "realtime-chat/client"
	healthCheckPeriod = 15 * time.Second
	storeCheckTimeout = 2 * time.Second
)

// Container holds all the dependencies of a running chat client
type Container struct {
	Config        *config.Config
	Logger        *logger.Logger
	Metrics       *observability.Metrics
	Secrets       *secrets.VaultManager
	Dispatcher    *ws.Dispatcher
	Manager       *ws.Manager
	Requester     *ws.Requester
	UploadBreaker *resilience.CircuitBreaker
	Snapshots     service.SnapshotStore
	Session       *service.Session
	Health        *health.Checker

	closers []func(context.Context) error
}

// New wires a session for the configured backend. Nothing is dialed until
// the session is started.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	if err := c.setupObservability(); err != nil {
		return nil, c.abort(err)
	}

	vaultManager, err := secrets.NewVaultManager(secrets.VaultConfig{
		Address:     cfg.Vault.Address,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		Timeout:     cfg.Vault.Timeout,
		MaxRetries:  cfg.Vault.MaxRetries,
		SecretsPath: cfg.Vault.SecretsPath,
		Enabled:     cfg.Vault.Enabled,
	}, log)
	if err != nil {
		return nil, c.abort(fmt.Errorf("failed to create secrets manager: %w", err))
	}
	c.Secrets = vaultManager

	credential, err := secrets.Credential(ctx, vaultManager, cfg.Credential.Key)
	if err != nil {
		return nil, c.abort(err)
	}

	dialer := ws.NewWebsocketDialer(ws.DialerConfig{
		HandshakeTimeout: cfg.Chat.HandshakeTimeout,
		WriteWait:        cfg.Chat.WriteWait,
		PongWait:         cfg.Chat.PongWait,
		MaxMessageSize:   cfg.Chat.MaxMessageSize,
		SendQueueSize:    cfg.Chat.SendQueueSize,
	}, log)

	c.Dispatcher = ws.NewDispatcher(log, c.Metrics)
	c.Manager = ws.NewManager(ws.ManagerConfig{
		Endpoint:       cfg.Chat.Endpoint,
		ConnectTimeout: cfg.Chat.HandshakeTimeout,
	}, dialer, log, c.Metrics)
	c.Requester = ws.NewRequester(c.Manager, c.Dispatcher, cfg.Chat.RequestTimeout, log, c.Metrics)
	c.Requester.Attach(c.Manager)

	breakerConfig := resilience.DefaultCircuitBreakerConfig("upload")
	breakerConfig.IsFailure = service.UploadFailure
	c.UploadBreaker = resilience.NewCircuitBreaker(breakerConfig, log)
	uploader := service.NewGuardedUploader(
		service.NewHTTPUploader(cfg.Chat.UploadURL, credential, cfg.Chat.UploadTimeout, log),
		c.UploadBreaker,
	)

	snapshots, ping, closeStore, err := NewSnapshotStore(cfg)
	if err != nil {
		return nil, c.abort(err)
	}
	c.Snapshots = snapshots
	c.closers = append(c.closers, func(context.Context) error { return closeStore() })

	c.Session = service.NewSession(credential, service.SessionConfig{
		RoomsPageSize:   cfg.Chat.RoomsPageSize,
		HistoryPageSize: cfg.Chat.HistoryPageSize,
		SendRate:        cfg.Chat.SendRate,
		SendBurst:       cfg.Chat.SendBurst,
	}, service.SessionDeps{
		Connection: c.Manager,
		Requester:  c.Requester,
		Pushes:     c.Dispatcher,
		Uploader:   uploader,
		Snapshots:  snapshots,
		Log:        log,
	})

	c.Health = health.NewChecker(log, healthCheckPeriod)
	c.Health.RegisterConnectionCheck(func() (string, bool) {
		state := c.Manager.State()
		return string(state), state == ws.StateConnected
	})
	c.Health.RegisterStoreCheck("snapshot_store", ping)
	c.Health.RegisterCheck("uploader", false, func() (health.Status, string, error) {
		if c.UploadBreaker.State() == resilience.StateOpen {
			return health.StatusDegraded, "Upload endpoint is failing", nil
		}
		return health.StatusUp, "Upload circuit is " + string(c.UploadBreaker.State()), nil
	})

	return c, nil
}

// NewSnapshotStore opens Redis when a URL is configured and falls back to
// an in-memory cache otherwise. It returns the store, a reachability probe
// and a close function.
func NewSnapshotStore(cfg *config.Config) (service.SnapshotStore, func() error, func() error, error) {
	if cfg.Snapshot.RedisURL == "" {
		memory := cache.New(cache.Config{
			TTL:             cfg.Snapshot.TTL,
			CleanupInterval: time.Minute,
			MaxItems:        64,
		})
		closeFn := func() error {
			memory.Close()
			return nil
		}
		return cache.NewSnapshotStore(memory), func() error { return nil }, closeFn, nil
	}

	client, err := redis.NewRedisClient(cfg.Snapshot.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), storeCheckTimeout)
		defer cancel()
		return client.Ping(ctx)
	}
	return redis.NewSnapshotStore(client, cfg.Snapshot.KeyPrefix, cfg.Snapshot.TTL), ping, client.Close, nil
}

// Close ends the session and releases everything the container opened,
// in reverse order
func (c *Container) Close(ctx context.Context) error {
	if c.Session != nil {
		_ = c.Session.Close()
	}

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}

func (c *Container) setupObservability() error {
	if c.Config.Observability.EnableTracing {
		shutdown, err := observability.SetupTracing(c.Config.Observability.ServiceName, os.Stdout)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, shutdown)
	}

	provider, err := observability.SetupPrometheusMetrics()
	if err != nil {
		return err
	}
	c.closers = append(c.closers, provider.Shutdown)

	metrics, err := observability.NewMetrics(provider.Meter(meterName))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	c.Metrics = metrics
	return nil
}

func (c *Container) abort(err error) error {
	_ = c.Close(context.Background())
	return err
}

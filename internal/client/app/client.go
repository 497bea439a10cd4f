// Package app собирает клиента трекера: хранилище учетных данных, шлюз
// запросов с обновлением токенов, контроллер сессии и клиентов API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apiadapters "tracker/internal/client/adapters/api"
	"tracker/internal/client/adapters/storage"
	"tracker/internal/client/config"
	"tracker/internal/client/credentials"
	"tracker/internal/client/gateway"
	"tracker/internal/client/metrics"
	"tracker/internal/client/ports/api"
	ports "tracker/internal/client/ports/storage"
	"tracker/internal/client/resilience"
	"tracker/internal/client/session"
	"tracker/internal/client/token"
	dbredis "tracker/pkg/db/redis"
	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	ResilienceName     = "tracker-api"
	AuthResilienceName = "tracker-auth"
	RetryReason        = "transient"

	LogInitStorage       = "initializing credential storage"
	LogRedisDisabled     = "redis disabled, remember-me sessions will not survive restart"
	LogClientReady       = "tracker client ready"
	ErrorConnectRedis    = "failed to connect durable storage"
	ErrorCreateStore     = "failed to create credential store"
	ErrorCloseBackend    = "failed to close storage backend"
	ErrorInitializeState = "failed to initialize session"
)

// Client - собранный клиент трекера.
type Client struct {
	Session   *session.Controller
	Gateway   *gateway.Gateway
	Resources *apiadapters.ResourceClient
	Store     *credentials.Store
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry

	backends []ports.Backend
}

// Option настраивает сборку клиента.
type Option func(*options)

type options struct {
	durable   ports.Backend
	transport api.Doer
	navigator session.Navigator
	now       func() time.Time
}

// WithDurableBackend задает постоянное хранилище вместо Redis из конфигурации.
func WithDurableBackend(b ports.Backend) Option {
	return func(o *options) {
		o.durable = b
	}
}

// WithTransport задает HTTP транспорт вместо http.Client с таймаутом из конфигурации.
func WithTransport(d api.Doer) Option {
	return func(o *options) {
		o.transport = d
	}
}

// WithNavigator задает реакцию на истечение сессии.
func WithNavigator(n session.Navigator) Option {
	return func(o *options) {
		o.navigator = n
	}
}

// WithClock подменяет время для проверки срока токенов.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New собирает клиента. Сессия не инициализируется: вызовите Initialize.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.Log(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	log.Info(ctx, LogInitStorage)
	durable := o.durable
	if durable == nil {
		var err error
		if durable, err = openDurable(ctx, cfg.Redis); err != nil {
			return nil, err
		}
	}
	ephemeral := storage.NewMemoryBackend()

	store, err := credentials.New(ctx, ephemeral, durable)
	if err != nil {
		_ = durable.Close()
		return nil, fmt.Errorf("%s: %w", ErrorCreateStore, err)
	}

	transport := o.transport
	if transport == nil {
		transport = &http.Client{Timeout: cfg.API.RequestTimeout}
	}

	retry := cfg.Resilience.RetryConfig()
	retry.OnRetry = func(int, error) { m.RequestRetried(RetryReason) }
	res := resilience.NewServiceResilience(ResilienceName, cfg.Resilience.BreakerConfig(), retry)
	// Сбои ресурсов не должны блокировать вход и обновление токенов.
	authRes := resilience.NewServiceResilience(AuthResilienceName, cfg.Resilience.BreakerConfig(), retry)

	authClient := apiadapters.NewAuthClient(transport, cfg.API, authRes)
	gw := gateway.New(transport, store, authClient,
		gateway.WithAuthPaths(cfg.API.AuthPaths()...),
		gateway.WithRefreshTimeout(cfg.API.RefreshTimeout),
		gateway.WithMetrics(m))

	sessionOpts := []session.Option{
		session.WithMetrics(m),
		session.WithExpiryMargin(cfg.Session.ExpiryMargin),
	}
	if o.navigator != nil {
		sessionOpts = append(sessionOpts, session.WithNavigator(o.navigator))
	}
	ctrl := session.NewController(store,
		authClient,
		apiadapters.NewUserClient(gw, cfg.API, res),
		token.NewInspector(token.WithClock(o.now)),
		sessionOpts...)
	gw.OnSessionExpired(ctrl.Expire)

	log.Info(ctx, LogClientReady, zap.String("storage_mode", store.Mode().String()))

	return &Client{
		Session:   ctrl,
		Gateway:   gw,
		Resources: apiadapters.NewResourceClient(gw, cfg.API, res),
		Store:     store,
		Metrics:   m,
		Registry:  registry,
		backends:  []ports.Backend{ephemeral, durable},
	}, nil
}

func openDurable(ctx context.Context, cfg config.RedisConfig) (ports.Backend, error) {
	if !cfg.Enabled {
		logger.Log(ctx).Warn(ctx, LogRedisDisabled)
		return storage.NewMemoryBackend(), nil
	}

	client, err := dbredis.NewClient(ctx, cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrorConnectRedis, err)
	}
	return storage.NewRedisBackend(client, cfg.KeyPrefix, cfg.TTL), nil
}

// Initialize восстанавливает сессию из хранилища.
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.Session.Initialize(ctx); err != nil {
		return fmt.Errorf("%s: %w", ErrorInitializeState, err)
	}
	return nil
}

// MetricsHandler отдает метрики клиента в формате Prometheus.
func (c *Client) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// Close освобождает хранилища.
func (c *Client) Close() error {
	var errs []error
	for _, b := range c.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ErrorCloseBackend, err))
		}
	}
	return errors.Join(errs...)
}

// Package config содержит конфигурацию клиента трекера.
package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgconfig "tracker/pkg/config"
	"tracker/pkg/logger"
)

// Константы сообщений конфигурации.
const (
	ServiceName         = "trackerctl"
	LogConfigDump       = "client configuration"
	ErrFailedLoadConfig = "failed to load client configuration"
)

// Config представляет полную конфигурацию клиента.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Shutdown   ShutdownConfig   `yaml:"shutdown"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// Load загружает конфигурацию из окружения и необязательных .env файлов.
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	cfg, err := pkgconfig.Load[Config](ctx, ServiceName, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrFailedLoadConfig, err)
	}

	logger.Log(ctx).Debug(ctx, LogConfigDump,
		zap.String("api_base_url", cfg.API.BaseURL),
		zap.Duration("api_request_timeout", cfg.API.RequestTimeout),
		zap.Duration("api_refresh_timeout", cfg.API.RefreshTimeout),
		zap.Duration("session_expiry_margin", cfg.Session.ExpiryMargin),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.String("redis_address", cfg.Redis.GetAddress()),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("metrics_address", cfg.Metrics.Address))

	return cfg, nil
}

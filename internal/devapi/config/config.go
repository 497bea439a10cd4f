// Package config содержит конфигурацию тестового API трекера.
package config

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	pkgconfig "tracker/pkg/config"
	"tracker/pkg/logger"
)

// Константы сообщений конфигурации.
const (
	ServiceName         = "devapi"
	LogConfigLoaded     = "devapi configuration"
	ErrFailedLoadConfig = "failed to load devapi configuration"
)

// Config представляет полную конфигурацию тестового API.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	JWT      JWTConfig      `yaml:"jwt"`
	Seed     SeedConfig     `yaml:"seed"`
	Logging  LoggingConfig  `yaml:"logging"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
}

// HTTPConfig представляет конфигурацию HTTP сервера.
type HTTPConfig struct {
	Host         string        `yaml:"host" env:"DEVAPI_HTTP_HOST" env-default:"127.0.0.1"`
	Port         int           `yaml:"port" env:"DEVAPI_HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"DEVAPI_HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"DEVAPI_HTTP_WRITE_TIMEOUT" env-default:"10s"`
}

// GetAddress возвращает адрес HTTP сервера.
func (c *HTTPConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig содержит настройки выпуска токенов.
type JWTConfig struct {
	SecretKey       string        `yaml:"secret_key" env:"DEVAPI_JWT_SECRET_KEY" env-default:"devapi-insecure-secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"DEVAPI_JWT_ACCESS_TOKEN_TTL" env-default:"5m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"DEVAPI_JWT_REFRESH_TOKEN_TTL" env-default:"168h"`
	BcryptCost      int           `yaml:"bcrypt_cost" env:"DEVAPI_BCRYPT_COST" env-default:"10"`
	// BareTokens включает старый формат ответа: токены строками, а не объектами.
	BareTokens bool `yaml:"bare_tokens" env:"DEVAPI_BARE_TOKENS" env-default:"false"`
}

// SeedConfig описывает демонстрационного пользователя.
type SeedConfig struct {
	Email     string `yaml:"email" env:"DEVAPI_SEED_EMAIL" env-default:"demo@tracker.local"`
	Password  string `yaml:"password" env:"DEVAPI_SEED_PASSWORD" env-default:"demo-password"`
	FirstName string `yaml:"first_name" env:"DEVAPI_SEED_FIRST_NAME" env-default:"Demo"`
	LastName  string `yaml:"last_name" env:"DEVAPI_SEED_LAST_NAME" env-default:"User"`
	Role      string `yaml:"role" env:"DEVAPI_SEED_ROLE" env-default:"admin"`
}

// LoggingConfig представляет конфигурацию логирования.
type LoggingConfig struct {
	Level string `yaml:"level" env:"DEVAPI_LOGGER_LEVEL" env-default:"info"`
	Mode  string `yaml:"mode" env:"DEVAPI_LOGGER_MODE" env-default:"development"`
}

// GetEnvironment возвращает режим работы логгера.
func (c *LoggingConfig) GetEnvironment() logger.Environment {
	if c.Mode == "production" {
		return logger.Production
	}
	return logger.Development
}

// ShutdownConfig представляет конфигурацию для корректного завершения работы.
type ShutdownConfig struct {
	Timeout int `yaml:"timeout" env:"DEVAPI_GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"5"`
}

// GetTimeout возвращает таймаут завершения в виде Duration.
func (c *ShutdownConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Load загружает конфигурацию из окружения и необязательных .env файлов.
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	cfg, err := pkgconfig.Load[Config](ctx, ServiceName, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrFailedLoadConfig, err)
	}

	logger.Log(ctx).Info(ctx, LogConfigLoaded,
		zap.String("http_address", cfg.HTTP.GetAddress()),
		zap.Duration("access_token_ttl", cfg.JWT.AccessTokenTTL),
		zap.Duration("refresh_token_ttl", cfg.JWT.RefreshTokenTTL),
		zap.Bool("bare_tokens", cfg.JWT.BareTokens),
		zap.String("seed_email", cfg.Seed.Email),
		zap.String("log_level", cfg.Logging.Level))

	return cfg, nil
}

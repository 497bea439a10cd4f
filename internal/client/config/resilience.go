package config

import (
	"time"

	"tracker/internal/client/resilience"
)

// ResilienceConfig содержит настройки повторов и circuit breaker для вызовов API.
type ResilienceConfig struct {
	RetryMaxAttempts    int           `yaml:"retry_max_attempts" env:"TRACKER_RETRY_MAX_ATTEMPTS" env-default:"3"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff" env:"TRACKER_RETRY_INITIAL_BACKOFF" env-default:"100ms"`
	RetryMaxBackoff     time.Duration `yaml:"retry_max_backoff" env:"TRACKER_RETRY_MAX_BACKOFF" env-default:"1s"`
	BreakerThreshold    int           `yaml:"breaker_threshold" env:"TRACKER_BREAKER_THRESHOLD" env-default:"5"`
	BreakerTimeout      time.Duration `yaml:"breaker_timeout" env:"TRACKER_BREAKER_TIMEOUT" env-default:"10s"`
}

// RetryConfig возвращает настройки повторов.
func (c *ResilienceConfig) RetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = c.RetryMaxAttempts
	cfg.InitialBackoff = c.RetryInitialBackoff
	cfg.MaxBackoff = c.RetryMaxBackoff
	return cfg
}

// BreakerConfig возвращает настройки circuit breaker.
func (c *ResilienceConfig) BreakerConfig() resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.ErrorThreshold = c.BreakerThreshold
	cfg.Timeout = c.BreakerTimeout
	return cfg
}

// Package redis создает клиентов Redis с проверкой соединения.
package redis

import "time"

// Значения по умолчанию.
const (
	DefaultAddr        = "localhost:6379"
	DefaultPoolSize    = 10
	DefaultDialTimeout = 5 * time.Second
)

// Config содержит настройки подключения к Redis.
type Config struct {
	Addr            string
	Password        string
	DB              int
	PoolSize        int
	MinIdle         int
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxConnLifetime time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		Addr:        DefaultAddr,
		PoolSize:    DefaultPoolSize,
		DialTimeout: DefaultDialTimeout,
	}
}

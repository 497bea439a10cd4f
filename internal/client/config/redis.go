package config

import (
	"fmt"
	"time"

	dbredis "tracker/pkg/db/redis"
)

// RedisConfig описывает постоянное хранилище учетных данных.
type RedisConfig struct {
	Enabled         bool          `yaml:"enabled" env:"TRACKER_REDIS_ENABLED" env-default:"true"`
	Host            string        `yaml:"host" env:"TRACKER_REDIS_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"TRACKER_REDIS_PORT" env-default:"6379"`
	Password        string        `yaml:"password" env:"TRACKER_REDIS_PASSWORD" env-default:""`
	DB              int           `yaml:"db" env:"TRACKER_REDIS_DB" env-default:"0"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"TRACKER_REDIS_CONNECT_TIMEOUT" env-default:"5s"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"TRACKER_REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"TRACKER_REDIS_WRITE_TIMEOUT" env-default:"3s"`
	PoolSize        int           `yaml:"pool_size" env:"TRACKER_REDIS_POOL_SIZE" env-default:"4"`
	MinIdle         int           `yaml:"min_idle" env:"TRACKER_REDIS_MIN_IDLE" env-default:"0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"TRACKER_REDIS_IDLE_TIMEOUT" env-default:"5m"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"TRACKER_REDIS_MAX_CONN_LIFETIME" env-default:"1h"`
	KeyPrefix       string        `yaml:"key_prefix" env:"TRACKER_REDIS_KEY_PREFIX" env-default:"tracker:auth:"`
	TTL             time.Duration `yaml:"ttl" env:"TRACKER_REDIS_TTL" env-default:"720h"`
}

// GetAddress возвращает адрес Redis в формате host:port.
func (c *RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClientConfig преобразует настройки в конфигурацию клиента Redis.
func (c *RedisConfig) ClientConfig() dbredis.Config {
	return dbredis.Config{
		Addr:            c.GetAddress(),
		Password:        c.Password,
		DB:              c.DB,
		PoolSize:        c.PoolSize,
		MinIdle:         c.MinIdle,
		DialTimeout:     c.ConnectTimeout,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		IdleTimeout:     c.IdleTimeout,
		MaxConnLifetime: c.MaxConnLifetime,
	}
}

package config

import "time"

// SessionConfig содержит настройки сессии.
type SessionConfig struct {
	ExpiryMargin time.Duration `yaml:"expiry_margin" env:"TRACKER_SESSION_EXPIRY_MARGIN" env-default:"30s"`
}

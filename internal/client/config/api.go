package config

import (
	"strings"
	"time"
)

// APIConfig описывает подключение к REST API трекера.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url" env:"TRACKER_API_BASE_URL" env-default:"http://localhost:8080"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"TRACKER_API_REQUEST_TIMEOUT" env-default:"15s"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"TRACKER_API_REFRESH_TIMEOUT" env-default:"10s"`
	LoginPath      string        `yaml:"login_path" env:"TRACKER_API_LOGIN_PATH" env-default:"/api/v1/login"`
	RegisterPath   string        `yaml:"register_path" env:"TRACKER_API_REGISTER_PATH" env-default:"/api/v1/register"`
	RefreshPath    string        `yaml:"refresh_path" env:"TRACKER_API_REFRESH_PATH" env-default:"/api/v1/auth/regenerate-tokens"`
	ProfilePath    string        `yaml:"profile_path" env:"TRACKER_API_PROFILE_PATH" env-default:"/api/v1/user/id/"`
}

// URL склеивает базовый адрес и путь.
func (c *APIConfig) URL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// AuthPaths возвращает пути, для которых 401 не запускает обновление токена.
func (c *APIConfig) AuthPaths() []string {
	return []string{c.LoginPath, c.RegisterPath, c.RefreshPath}
}

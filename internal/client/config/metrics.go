package config

// MetricsConfig задает адрес экспорта метрик Prometheus. Пустой адрес отключает экспорт.
type MetricsConfig struct {
	Address string `yaml:"address" env:"TRACKER_METRICS_ADDRESS" env-default:""`
	Path    string `yaml:"path" env:"TRACKER_METRICS_PATH" env-default:"/metrics"`
}

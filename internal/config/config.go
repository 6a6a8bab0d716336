package config

import (
	"time"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Auth      AuthConfig      `mapstructure:"auth"`
	View      ViewConfig      `mapstructure:"view"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig points at the immunization backend. BaseURL already contains the
// /api prefix, sync routes are appended to it.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

func (a APIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

type AuthConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token_file"`
}

type ViewConfig struct {
	Route         string `mapstructure:"route"`
	LoginRoute    string `mapstructure:"login_route"`
	DefaultFilter string `mapstructure:"default_filter"`
	FeedSize      int    `mapstructure:"feed_size"`
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	AuthToken    string   `mapstructure:"auth_token"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CorsOrigins  []string `mapstructure:"cors_origins"`
	RateLimit    float64  `mapstructure:"rate_limit"`
	RateBurst    int      `mapstructure:"rate_burst"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

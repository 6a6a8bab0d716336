package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SYNCCTL_API_BASE_URL.
const EnvPrefix = "SYNCCTL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("auth.token", "")
	v.SetDefault("auth.token_file", "")

	v.SetDefault("view.route", "/sync-status")
	v.SetDefault("view.login_route", "/login")
	v.SetDefault("view.default_filter", "ALL")
	v.SetDefault("view.feed_size", 50)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "@every 1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
}

// LoadConfig reads path (YAML) on top of the defaults and applies SYNCCTL_*
// environment overrides. A .env file in the working directory is loaded first.
// A missing config file is not an error; defaults and env still apply.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Package config loads the service configuration from YAML and overlays
// environment variables on top (env wins). Durations are written as Go
// duration strings ("20s", "720h").
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Env string `yaml:"env"` // dev | prod
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr         string `yaml:"addr"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | sqlite | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind       string `yaml:"kind"` // memory | redis
		DefaultTTL string `yaml:"default_ttl"`
		Redis      struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Token struct {
		Accessible       string `yaml:"accessible"`
		Refreshable      string `yaml:"refreshable"`
		MinAccessibility string `yaml:"min_accessibility"`
	} `yaml:"token"`

	Refresh struct {
		RetryAttempts int    `yaml:"retry_attempts"`
		RetryDelay    string `yaml:"retry_delay"`
	} `yaml:"refresh"`

	Facebook struct {
		AppID       string `yaml:"app_id"`
		AppSecret   string `yaml:"app_secret"`
		RedirectURI string `yaml:"redirect_uri"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"facebook"`

	FirstParty struct {
		// Name of the platform's own client; it must exist in the store
		// or the process refuses to start.
		Client string `yaml:"client"`
	} `yaml:"firstparty"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}
	c.defaults()
	c.applyEnvOverrides()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) defaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":4040"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.DefaultTTL == "" {
		c.Cache.DefaultTTL = "30s"
	}
	if c.Token.Accessible == "" {
		c.Token.Accessible = "1h"
	}
	if c.Token.Refreshable == "" {
		c.Token.Refreshable = "720h" // 30d
	}
	if c.Token.MinAccessibility == "" {
		c.Token.MinAccessibility = "20s"
	}
	if c.Refresh.RetryAttempts == 0 {
		c.Refresh.RetryAttempts = 4
	}
	if c.Refresh.RetryDelay == "" {
		c.Refresh.RetryDelay = "500ms"
	}
	if c.Facebook.Timeout == "" {
		c.Facebook.Timeout = "10s"
	}
	if c.FirstParty.Client == "" {
		c.FirstParty.Client = "accounts"
	}
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("TOKEN_ACCESSIBLE"); ok {
		c.Token.Accessible = v
	}
	if v, ok := getEnvStr("TOKEN_REFRESHABLE"); ok {
		c.Token.Refreshable = v
	}
	if v, ok := getEnvStr("TOKEN_MIN_ACCESSIBILITY"); ok {
		c.Token.MinAccessibility = v
	}
	if v, ok := getEnvInt("REFRESH_RETRY_ATTEMPTS"); ok {
		c.Refresh.RetryAttempts = v
	}
	if v, ok := getEnvStr("REFRESH_RETRY_DELAY"); ok {
		c.Refresh.RetryDelay = v
	}
	if v, ok := getEnvStr("FACEBOOK_APP_ID"); ok {
		c.Facebook.AppID = v
	}
	if v, ok := getEnvStr("FACEBOOK_APP_SECRET"); ok {
		c.Facebook.AppSecret = v
	}
	if v, ok := getEnvStr("FACEBOOK_REDIRECT_URI"); ok {
		c.Facebook.RedirectURI = v
	}
	if v, ok := getEnvStr("FIRSTPARTY_CLIENT"); ok {
		c.FirstParty.Client = v
	}
}

func (c *Config) validate() error {
	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"cache.default_ttl":       c.Cache.DefaultTTL,
		"token.accessible":        c.Token.Accessible,
		"token.refreshable":       c.Token.Refreshable,
		"token.min_accessibility": c.Token.MinAccessibility,
		"refresh.retry_delay":     c.Refresh.RetryDelay,
		"facebook.timeout":        c.Facebook.Timeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: storage.postgres.conn_max_lifetime: %w", err)
		}
	}
	return nil
}

// Duration parses a config duration that validate() already accepted.
func Duration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Package config loads the YAML configuration shared by the storefront and
// mirror binaries. Environment variables override the file; flags in main
// override both.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/bazaar-store/internal/logging"
)

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Storefront StorefrontConfig `yaml:"storefront"`
	Mirror     MirrorConfig     `yaml:"mirror"`
	Temporal   TemporalConfig   `yaml:"temporal"`
	Assistant  AssistantConfig  `yaml:"assistant"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type StorefrontConfig struct {
	Addr              string `yaml:"addr"`
	DB                string `yaml:"db"`
	SecretKey         string `yaml:"secret_key"`
	SecretKeyFile     string `yaml:"secret_key_file"`
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
	AdminPassword     string `yaml:"admin_password"`
}

// MirrorConfig covers both sides: Table and Timeout tune the storefront's
// client, the rest configures the mirror server.
type MirrorConfig struct {
	Table     string        `yaml:"table"`
	Timeout   time.Duration `yaml:"timeout"`
	Addr      string        `yaml:"addr"`
	DB        string        `yaml:"db"`
	AccessKey string        `yaml:"access_key"`
}

// TemporalConfig enables the Temporal dispatcher when HostPort is set.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
}

type AssistantConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		Storefront: StorefrontConfig{
			Addr:          ":8080",
			DB:            "storefront.db",
			SecretKeyFile: "storefront.key",
			AdminUser:     "admin",
		},
		Mirror: MirrorConfig{
			Table:   "store_data",
			Timeout: 10 * time.Second,
			Addr:    ":8081",
			DB:      "mirror.db",
		},
		Temporal:  TemporalConfig{Namespace: "default"},
		Assistant: AssistantConfig{Model: "gemini-2.5-flash"},
	}
}

// Load reads path (if not empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Log.Format, "LOG_FORMAT")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Storefront.SecretKey, "STOREFRONT_SECRET_KEY")
	set(&c.Storefront.AdminPassword, "ADMIN_PASSWORD")
	set(&c.Storefront.AdminPasswordHash, "ADMIN_PASSWORD_HASH")
	set(&c.Mirror.AccessKey, "MIRROR_ACCESS_KEY")
	set(&c.Temporal.HostPort, "TEMPORAL_HOST_PORT")
	set(&c.Assistant.APIKey, "GEMINI_API_KEY", "API_KEY")
}

func (c Config) validate() error {
	var errs []error
	if c.Mirror.Timeout <= 0 {
		errs = append(errs, errors.New("mirror.timeout must be positive"))
	}
	if strings.TrimSpace(c.Mirror.Table) == "" {
		errs = append(errs, errors.New("mirror.table is required"))
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "console" {
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Logging converts the log section for the logging package.
func (c Config) Logging() logging.Options {
	return logging.Options{Format: c.Log.Format, Level: c.Log.Level}
}

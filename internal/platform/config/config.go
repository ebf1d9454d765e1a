package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the identity service.
// Values come from a yaml file plus APP_-prefixed environment overrides.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPPort int    `mapstructure:"HTTP_PORT"`

	FirestoreProjectID string `mapstructure:"FIRESTORE_PROJECT_ID"`
	StorageBucket      string `mapstructure:"STORAGE_BUCKET"`
	NATSUrl            string `mapstructure:"NATS_URL"`

	// Serverless account-erase trigger.
	TriggerURL            string `mapstructure:"TRIGGER_URL"`
	TriggerSigningSecret  string `mapstructure:"TRIGGER_SIGNING_SECRET"`
	TriggerTimeoutSeconds int    `mapstructure:"TRIGGER_TIMEOUT_SECONDS"`

	// Local cache (embedded sqlite).
	CachePath string `mapstructure:"CACHE_PATH"`

	// Identity provider.
	RecentAuthWindowMinutes int `mapstructure:"RECENT_AUTH_WINDOW_MINUTES"`

	// Remote store lookups.
	LookupTimeoutSeconds      int `mapstructure:"LOOKUP_TIMEOUT_SECONDS"`
	ContactRetryDelaySeconds  int `mapstructure:"CONTACT_RETRY_DELAY_SECONDS"`
	PrincipalOpTimeoutSeconds int `mapstructure:"PRINCIPAL_OP_TIMEOUT_SECONDS"`
}

func (c *Config) TriggerTimeout() time.Duration {
	return time.Duration(c.TriggerTimeoutSeconds) * time.Second
}

func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

func (c *Config) ContactRetryDelay() time.Duration {
	return time.Duration(c.ContactRetryDelaySeconds) * time.Second
}

func (c *Config) PrincipalOpTimeout() time.Duration {
	return time.Duration(c.PrincipalOpTimeoutSeconds) * time.Second
}

func (c *Config) RecentAuthWindow() time.Duration {
	return time.Duration(c.RecentAuthWindowMinutes) * time.Minute
}

// Load reads configuration from configPath/configName.yaml (if present) and the
// environment. Environment variables use the APP_ prefix, e.g. APP_HTTP_PORT.
func Load(configPath, configName string) (*Config, error) {
	v := viper.New()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("TRIGGER_TIMEOUT_SECONDS", 10)
	v.SetDefault("CACHE_PATH", "identity_cache.db")
	v.SetDefault("RECENT_AUTH_WINDOW_MINUTES", 5)
	v.SetDefault("LOOKUP_TIMEOUT_SECONDS", 5)
	v.SetDefault("CONTACT_RETRY_DELAY_SECONDS", 2)
	v.SetDefault("PRINCIPAL_OP_TIMEOUT_SECONDS", 15)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.FirestoreProjectID == "" {
		return nil, fmt.Errorf("APP_FIRESTORE_PROJECT_ID is required")
	}
	if cfg.StorageBucket == "" {
		return nil, fmt.Errorf("APP_STORAGE_BUCKET is required")
	}

	return &cfg, nil
}

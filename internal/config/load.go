package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from config.yaml in the working directory when present; a
	// missing file is not an error since env vars can supply everything.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables use the RELAYQ_ prefix with underscores,
	// e.g. RELAYQ_SERVER_PORT maps to server.port.
	v.SetEnvPrefix("RELAYQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind the keys that have no registered default. AutomaticEnv
	// only resolves keys viper already knows about, so without these bindings
	// Unmarshal would never see env-only settings like the callback secret.
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"callback.secret", "RELAYQ_CALLBACK_SECRET"},
		{"database.url", "RELAYQ_DATABASE_URL"},
		{"redis.addr", "RELAYQ_REDIS_ADDR"},
		{"redis.password", "RELAYQ_REDIS_PASSWORD"},
		{"dispatcher.unit_binary", "RELAYQ_DISPATCHER_UNIT_BINARY"},
	}

	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Queue.Backend == "redis" && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("config validation failed: redis.addr is required for the redis queue backend")
	}

	if cfg.Notification.Store == "postgres" && cfg.Database.URL == "" {
		return nil, fmt.Errorf("config validation failed: database.url is required for the postgres notification store")
	}

	return &cfg, nil
}

// setDefaults registers the default value for every setting that has one.
// Required settings without defaults (e.g. the callback secret) must be
// provided by the environment or a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.tenant_id", "default")
	v.SetDefault("queue.visibility_seconds", 30)
	v.SetDefault("queue.max_delivery_count", 5)

	v.SetDefault("dispatcher.poll_interval_seconds", 5)
	v.SetDefault("dispatcher.max_messages", 10)
	v.SetDefault("dispatcher.provisioner", "pool")
	v.SetDefault("dispatcher.worker_count", 4)

	v.SetDefault("handler.timeout_seconds", 1800)

	v.SetDefault("callback.retry_count", 3)
	v.SetDefault("callback.timeout_seconds", 30)
	v.SetDefault("callback.base_url", "http://localhost:8080")

	v.SetDefault("notification.store", "memory")
	v.SetDefault("notification.poll_timeout_seconds", 8)
	v.SetDefault("notification.retention_hours", 24)
}

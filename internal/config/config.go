package config

import (
	"fmt"
	"strings"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"       validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Queue        QueueConfig        `mapstructure:"queue"        validate:"required"`
	Dispatcher   DispatcherConfig   `mapstructure:"dispatcher"   validate:"required"`
	Handler      HandlerConfig      `mapstructure:"handler"      validate:"required"`
	Callback     CallbackConfig     `mapstructure:"callback"     validate:"required"`
	Notification NotificationConfig `mapstructure:"notification" validate:"required"`
}

// ServerConfig contains all front-door server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the Postgres settings for the durable
// notification store. The URL is only required when the notification
// store backend is "postgres".
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig contains the Redis settings for the durable queue
// backend. The address is only required when the queue backend is
// "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// QueueConfig contains queue semantics shared by all backends.
type QueueConfig struct {
	// Backend selects the queue implementation: "memory" or "redis".
	Backend string `mapstructure:"backend" validate:"required,oneof=memory redis"`

	// TenantID is the tenant this deployment serves by default.
	TenantID string `mapstructure:"tenant_id" validate:"required"`

	// VisibilitySeconds is the lease duration for dequeued messages.
	VisibilitySeconds int `mapstructure:"visibility_seconds" validate:"required,gt=0"`

	// MaxDeliveryCount bounds redelivery; a message exceeding it is
	// moved to the tenant dead-letter queue.
	MaxDeliveryCount int `mapstructure:"max_delivery_count" validate:"required,gt=0"`
}

// DispatcherConfig contains the dispatcher poll-loop settings.
type DispatcherConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`
	MaxMessages         int `mapstructure:"max_messages"          validate:"required,gt=0"`

	// Provisioner selects the ephemeral-unit backend: "pool" runs
	// handlers in an in-process worker pool, "exec" spawns the unit
	// binary per message.
	Provisioner string `mapstructure:"provisioner" validate:"required,oneof=pool exec"`

	// UnitBinary is the path to the unit executable for the "exec"
	// provisioner.
	UnitBinary string `mapstructure:"unit_binary"`

	// WorkerCount bounds concurrent units for the "pool" provisioner.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
}

// HandlerConfig contains task-execution settings inside a unit.
type HandlerConfig struct {
	// TimeoutSeconds is the hard wall-clock bound on a single handler
	// execution; exceeding it fails the task and lets the lease expire.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// CallbackConfig contains completion-callback delivery settings.
type CallbackConfig struct {
	RetryCount     int    `mapstructure:"retry_count"     validate:"required,gt=0"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	Secret         string `mapstructure:"secret"          validate:"required,min=32"`

	// BaseURL is the externally reachable address of the front-door
	// server, used to build the default callback URL for submitted
	// tasks that do not carry their own.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// DefaultURL returns the callback URL units post completions to when a
// submitted task does not name its own.
func (c CallbackConfig) DefaultURL(tenantID string) string {
	return fmt.Sprintf("%s/internal/notify/%s", strings.TrimRight(c.BaseURL, "/"), tenantID)
}

// NotificationConfig contains notification store and long-poll settings.
type NotificationConfig struct {
	// Store selects the notification store backend: "memory" or "postgres".
	Store string `mapstructure:"store" validate:"required,oneof=memory postgres"`

	// PollTimeoutSeconds bounds a single long-poll wait. It must stay
	// strictly below the hosting platform's outer request ceiling.
	PollTimeoutSeconds int `mapstructure:"poll_timeout_seconds" validate:"required,gt=0"`

	// RetentionHours bounds how long notification records are kept
	// before the purge loop removes them.
	RetentionHours int `mapstructure:"retention_hours" validate:"required,gt=0"`
}

package config

import (
	"time"

	"github.com/remedyops/healer/internal/healing/queue"
	"github.com/remedyops/healer/internal/healing/strategy"
	"github.com/remedyops/healer/internal/infra/llm"
	redisclient "github.com/remedyops/healer/internal/infra/redis"
	"github.com/remedyops/healer/internal/infra/storage/postgres"
	"github.com/remedyops/healer/internal/notify"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	LLM      llm.Config         `yaml:"llm"`
	Healing  HealingConfig      `yaml:"healing"`
	Queue    queue.Config       `yaml:"queue"`
	Monitor  MonitorConfig      `yaml:"monitor"`
	Notify   NotifyConfig       `yaml:"notify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// HealingConfig tunes strategy execution.
type HealingConfig struct {
	Executor strategy.Config `yaml:"executor"`

	// SecondaryEndpoints maps an operation source to its failover URL
	// for SWITCH_API_ENDPOINT.
	SecondaryEndpoints map[string]string `yaml:"secondary_endpoints"`

	// Defaults maps an operation source to the value USE_DEFAULT_VALUE
	// serves for it.
	Defaults map[string]any `yaml:"defaults"`
}

// MonitorConfig holds health-monitor settings.
type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`

	// EmailProviderURL is probed for reachability when set.
	EmailProviderURL string `yaml:"email_provider_url"`

	// SMS provider credentials, validated for completeness.
	SMSAccountID string `yaml:"sms_account_id"`
	SMSAuthToken string `yaml:"sms_auth_token"`

	// FileStorageDir is checked for existence when set.
	FileStorageDir string `yaml:"file_storage_dir"`
}

// NotifyConfig holds operator-alerting settings.
type NotifyConfig struct {
	WebhookURL     string             `yaml:"webhook_url"`
	WebhookTimeout time.Duration      `yaml:"webhook_timeout"`
	Operators      []notify.Recipient `yaml:"operators"`
}

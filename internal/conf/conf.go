package conf

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Connection modes
const (
	ConnectionModeWebhook   = "webhook"
	ConnectionModeWebSocket = "websocket"
)

// Config represents application configuration
type Config struct {
	// Feishu app and API configuration
	Feishu FeishuConfig

	// HTTP server configuration
	Server ServerConfig

	// Feedback recording configuration
	Feedback FeedbackConfig

	// Event pipeline configuration
	Pipeline PipelineConfig

	// ProjectsPath is an optional YAML project registry file
	ProjectsPath string `env:"PROJECTS_CONFIG_PATH"`

	// AuditDBPath enables the SQLite audit log when set
	AuditDBPath string `env:"FEEDBACK_DB_PATH"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID             string        `env:"APP_ID"`
	AppSecret         string        `env:"APP_SECRET"`
	BaseURL           string        `env:"FEISHU_BASE_URL,default=https://open.feishu.cn"`
	VerificationToken string        `env:"VERIFICATION_TOKEN"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           int    `env:"PORT,default=3000"`
	WebhookPath    string `env:"WEBHOOK_PATH,default=/webhook"`
	ConnectionMode string `env:"CONNECTION_MODE,default=webhook"`
}

// FeedbackConfig contains feedback recording configuration
type FeedbackConfig struct {
	Mode       string `env:"FEEDBACK_MODE,default=comment"`
	Field      string `env:"FEEDBACK_FIELD,default=需求反馈"`
	Keyword    string `env:"FEEDBACK_KEYWORD,default=物品需求反馈"`
	BatchField string `env:"BATCH_FIELD,default=批次"`
}

// PipelineConfig contains event filter configuration
type PipelineConfig struct {
	StaleAfter  time.Duration `env:"STALE_AFTER,default=5m"`
	DedupPolicy string        `env:"DEDUP_POLICY,default=clear"`
	DedupSize   int           `env:"DEDUP_SIZE,default=1000"`
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnvSet loads configuration from an explicit variable set
func LoadFromEnvSet(es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "APP_ID/APP_SECRET", Message: "required"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "PORT", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		return &ConfigError{Field: "WEBHOOK_PATH", Message: "must start with /"}
	}
	switch c.Server.ConnectionMode {
	case ConnectionModeWebhook, ConnectionModeWebSocket:
	default:
		return &ConfigError{Field: "CONNECTION_MODE", Message: fmt.Sprintf("unknown mode %q", c.Server.ConnectionMode)}
	}
	switch c.Feedback.Mode {
	case "comment":
	case "field":
		if c.Feedback.Field == "" {
			return &ConfigError{Field: "FEEDBACK_FIELD", Message: "required in field mode"}
		}
	default:
		return &ConfigError{Field: "FEEDBACK_MODE", Message: fmt.Sprintf("unknown mode %q", c.Feedback.Mode)}
	}
	if strings.TrimSpace(c.Feedback.Keyword) == "" {
		return &ConfigError{Field: "FEEDBACK_KEYWORD", Message: "required"}
	}
	if c.Feedback.BatchField == "" {
		return &ConfigError{Field: "BATCH_FIELD", Message: "required"}
	}
	switch c.Pipeline.DedupPolicy {
	case "clear", "lru":
	default:
		return &ConfigError{Field: "DEDUP_POLICY", Message: fmt.Sprintf("unknown policy %q", c.Pipeline.DedupPolicy)}
	}
	if c.Pipeline.DedupSize <= 0 {
		return &ConfigError{Field: "DEDUP_SIZE", Message: "must be positive"}
	}
	if c.Pipeline.StaleAfter <= 0 {
		return &ConfigError{Field: "STALE_AFTER", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

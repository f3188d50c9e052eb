// Package config defines the global configuration structure for the relay.
// Configuration is loaded once at process startup and is immutable thereafter.
// It follows 12-Factor App principles by strictly separating code from
// configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"seedrelay/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the relay. It is populated
// once during process initialization and never modified. Sub-components
// receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"seedrelay"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Relay    RelayConfig
	Auth     AuthConfig
	Fallback FallbackConfig
	Traffic  TrafficConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"5000"`
}

// RelayConfig holds the primary Apprise relay endpoint settings.
type RelayConfig struct {
	URL       string        `envconfig:"APPRISE_URL" default:"http://apprise-api:8000/notify/crossseed" validate:"required,url"`
	IconURL   string        `envconfig:"ICON_URL" default:"https://i.imgur.com/eDnBPLK.png" validate:"omitempty,url"`
	Timeout   time.Duration `envconfig:"RELAY_TIMEOUT" default:"5s"`
	UserAgent string        `envconfig:"RELAY_USER_AGENT" default:"seedrelay/1.0"`
}

// AuthConfig holds the operator route access token. An empty token disables
// the access guard entirely.
type AuthConfig struct {
	Token SecretString `envconfig:"AUTH_TOKEN"`
}

// FallbackConfig holds the secondary notification channel credentials.
// A channel is wired only when its credentials are present.
type FallbackConfig struct {
	SlackWebhookURL  SecretString `envconfig:"SLACK_WEBHOOK_URL"`
	TelegramBotToken SecretString `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string       `envconfig:"TELEGRAM_CHAT_ID"`
}

// TrafficConfig holds inbound traffic shaping parameters.
type TrafficConfig struct {
	RateLimitInterval time.Duration `envconfig:"RATE_LIMIT_INTERVAL" default:"200ms"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Dispatch modes for application events.
const (
	DispatchQueue  = "queue"
	DispatchInline = "inline"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"0s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:""`

	DataStoreURL     string        `envconfig:"DATASTORE_URL" default:"http://127.0.0.1:3001"`
	DataStoreToken   string        `envconfig:"DATASTORE_TOKEN" default:""`
	DataStoreTimeout time.Duration `envconfig:"DATASTORE_TIMEOUT" default:"10s"`

	NotifyPrefix     string        `envconfig:"NOTIFY_PREFIX" default:"visadesk"`
	NotifyDispatch   string        `envconfig:"NOTIFY_DISPATCH" default:"queue"`
	NotifyBackoffMin time.Duration `envconfig:"NOTIFY_BACKOFF_MIN" default:"500ms"`
	NotifyBackoffMax time.Duration `envconfig:"NOTIFY_BACKOFF_MAX" default:"30s"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret must be provided")
	}
	switch c.NotifyDispatch {
	case DispatchQueue, DispatchInline:
	default:
		return fmt.Errorf("unknown NOTIFY_DISPATCH %q", c.NotifyDispatch)
	}
	if c.NotifyBackoffMax < c.NotifyBackoffMin {
		return errors.New("NOTIFY_BACKOFF_MAX must not be below NOTIFY_BACKOFF_MIN")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

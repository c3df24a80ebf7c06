package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	CORSAllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool          `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	CORSMaxAge           time.Duration `env:"CORS_MAX_AGE" envDefault:"5m"`

	AdminJWTSecret string `env:"ADMIN_JWT_SECRET,required,notEmpty"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	Jobs     JobsConfig
	Redis    RedisConfig
	Email    EmailConfig
	Webhooks WebhookConfig
}

type JobsConfig struct {
	MaxRetries      int           `env:"JOBS_MAX_RETRIES" envDefault:"3"`
	Retention       time.Duration `env:"JOBS_RETENTION" envDefault:"720h"`
	PollInterval    time.Duration `env:"JOBS_POLL_INTERVAL" envDefault:"1s"`
	RetryInterval   time.Duration `env:"JOBS_RETRY_INTERVAL" envDefault:"1m"`
	CleanupInterval time.Duration `env:"JOBS_CLEANUP_INTERVAL" envDefault:"1h"`
	Concurrency     int           `env:"JOBS_CONCURRENCY" envDefault:"4"`
}

// RedisConfig is optional; without a URL sweeps use an in-process lease.
type RedisConfig struct {
	URL           string        `env:"REDIS_URL"`
	RetryAttempts int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
}

// EmailConfig is optional; without Postmark tokens emails are only logged.
type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	Sender               string `env:"EMAIL_SENDER" envDefault:"no-reply@worknest.local"`
}

type WebhookConfig struct {
	Secret  string        `env:"WEBHOOK_SECRET"`
	Timeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres store", ErrInvalidConfig)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalidConfig, c.StoreDriver)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be json or text", ErrInvalidConfig)
	}
	if c.Jobs.MaxRetries < 0 {
		return fmt.Errorf("%w: JOBS_MAX_RETRIES must not be negative", ErrInvalidConfig)
	}
	if c.Jobs.Retention <= 0 {
		return fmt.Errorf("%w: JOBS_RETENTION must be positive", ErrInvalidConfig)
	}
	if c.Jobs.Concurrency < 1 {
		return fmt.Errorf("%w: JOBS_CONCURRENCY must be at least 1", ErrInvalidConfig)
	}
	return nil
}

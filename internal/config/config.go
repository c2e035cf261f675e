// Package config loads the sqs-consumer daemon configuration from the environment.
package config

import (
	"fmt"
	"time"

	sqsconsumer "github.com/BBC/sqs-consumer"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config defines all environment variables and derived config for the daemon.
type Config struct {
	// Derived durations, not loaded from env directly.
	WaitTime                   time.Duration `env:"-"`
	HandleMessageTimeout       time.Duration `env:"-"`
	AuthenticationErrorTimeout time.Duration `env:"-"`
	PollingWaitTime            time.Duration `env:"-"`

	QueueURL string `env:"SQS_QUEUE_URL,required" validate:"required,url"`
	Region   string `env:"AWS_REGION" envDefault:"eu-west-1" validate:"required"`
	// Endpoint overrides the SQS endpoint, for example to point at a local emulator.
	Endpoint string `env:"SQS_ENDPOINT" validate:"omitempty,url"`

	BatchSize                   int32 `env:"SQS_BATCH_SIZE" envDefault:"1" validate:"min=1,max=10"`
	WaitTimeSeconds             int32 `env:"SQS_WAIT_TIME_SECONDS" envDefault:"20" validate:"min=0,max=20"`
	VisibilityTimeoutSeconds    int32 `env:"SQS_VISIBILITY_TIMEOUT_SECONDS" envDefault:"0" validate:"min=0,max=43200"`
	MaxVisibilityTimeoutSeconds int32 `env:"SQS_MAX_VISIBILITY_TIMEOUT_SECONDS" envDefault:"43200" validate:"min=1,max=43200"`
	MaxRetryAttempts            int   `env:"SQS_API_MAX_RETRY_ATTEMPTS" envDefault:"5" validate:"min=0,max=10"`

	HandleMessageTimeoutMs       int64 `env:"HANDLE_MESSAGE_TIMEOUT_MS" envDefault:"0" validate:"min=0"`
	AuthenticationErrorTimeoutMs int64 `env:"AUTHENTICATION_ERROR_TIMEOUT_MS" envDefault:"10000" validate:"min=0"`
	PollingWaitTimeMs            int64 `env:"POLLING_WAIT_TIME_MS" envDefault:"0" validate:"min=0"`

	TerminateVisibilityTimeout bool `env:"TERMINATE_VISIBILITY_TIMEOUT" envDefault:"false"`
	ExtendVisibilityTimeout    bool `env:"EXTEND_VISIBILITY_TIMEOUT" envDefault:"false"`
	ConcurrencyLimit           int  `env:"CONCURRENCY_LIMIT" envDefault:"0" validate:"min=0"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

// Parse loads configuration from environment variables, validates and normalizes it.
func Parse() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.normalize()

	return &cfg, nil
}

func (c *Config) validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// normalize converts the numeric env values to durations.
func (c *Config) normalize() {
	c.WaitTime = time.Duration(c.WaitTimeSeconds) * time.Second
	c.HandleMessageTimeout = time.Duration(c.HandleMessageTimeoutMs) * time.Millisecond
	c.AuthenticationErrorTimeout = time.Duration(c.AuthenticationErrorTimeoutMs) * time.Millisecond
	c.PollingWaitTime = time.Duration(c.PollingWaitTimeMs) * time.Millisecond
}

// ConsumerOptions maps the configuration onto consumer options.
func (c *Config) ConsumerOptions() []sqsconsumer.Option {
	return []sqsconsumer.Option{
		sqsconsumer.WithBatchSize(c.BatchSize),
		sqsconsumer.WithWaitTime(c.WaitTime),
		sqsconsumer.WithVisibilityTimeout(c.VisibilityTimeoutSeconds),
		sqsconsumer.WithMaxVisibilityTimeout(c.MaxVisibilityTimeoutSeconds),
		sqsconsumer.WithHandleMessageTimeout(c.HandleMessageTimeout),
		sqsconsumer.WithAuthenticationErrorTimeout(c.AuthenticationErrorTimeout),
		sqsconsumer.WithPollingWaitTime(c.PollingWaitTime),
		sqsconsumer.WithTerminateVisibilityTimeout(c.TerminateVisibilityTimeout),
		sqsconsumer.WithExtendVisibilityTimeout(c.ExtendVisibilityTimeout),
		sqsconsumer.WithConcurrencyLimit(c.ConcurrencyLimit),
		sqsconsumer.WithSqsAPIMaxRetryAttempts(c.MaxRetryAttempts),
		sqsconsumer.WithMessageAttributeNames("All"),
	}
}

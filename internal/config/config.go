package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cartpay/cartpay/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Stripe     StripeConfig     `validate:"required"`
	Payment    PaymentConfig    `validate:"required"`
	Webhook    Webhook
	Sentry     SentryConfig
	Cache      CacheConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type StripeConfig struct {
	SecretKey   string        `mapstructure:"secret_key" validate:"required"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// PaymentConfig carries the knobs the cart payment processor recognizes.
type PaymentConfig struct {
	// DelayCaptureDefault is used when a create request does not say whether
	// to capture immediately.
	DelayCaptureDefault bool `mapstructure:"delay_capture_default"`
	// DefaultCaptureAfter is added to the creation time to produce the
	// capture_after deadline of delayed-capture intents.
	DefaultCaptureAfter time.Duration `mapstructure:"default_capture_after"`
	// CaptureSweepCutoff bounds how far back the sweeper considers intents
	// well formed. Intents older than this are skipped, not repaired.
	CaptureSweepCutoff time.Duration `mapstructure:"capture_sweep_cutoff"`
	// DescriptionMaxLen truncates client descriptions projected onto legacy
	// charge rows.
	DescriptionMaxLen int `mapstructure:"description_max_len"`
	// PSPCommando seeds the gateway's commando flag: when set, outbound
	// provider calls are bypassed and submissions recorded provisionally.
	PSPCommando bool `mapstructure:"psp_commando"`
	// SweepInterval is the pause between sweeper runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	// Local development reads secrets from .env before viper kicks in
	_ = godotenv.Load()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cartpay")

	v.SetEnvPrefix("CARTPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))

	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("stripe.call_timeout", 30*time.Second)

	v.SetDefault("payment.delay_capture_default", false)
	v.SetDefault("payment.default_capture_after", time.Hour)
	v.SetDefault("payment.capture_sweep_cutoff", 7*24*time.Hour)
	v.SetDefault("payment.description_max_len", 1000)
	v.SetDefault("payment.psp_commando", false)
	v.SetDefault("payment.sweep_interval", time.Minute)

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.topic", "webhooks")
	v.SetDefault("webhook.pubsub", string(types.MemoryPubSub))
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.initial_interval", time.Second)
	v.SetDefault("webhook.max_interval", 10*time.Second)
	v.SetDefault("webhook.multiplier", 2.0)
	v.SetDefault("webhook.max_elapsed_time", time.Minute)

	v.SetDefault("cache.default_ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Payment: PaymentConfig{
			DefaultCaptureAfter: time.Hour,
			CaptureSweepCutoff:  7 * 24 * time.Hour,
			DescriptionMaxLen:   1000,
			SweepInterval:       time.Minute,
		},
		Stripe: StripeConfig{CallTimeout: 30 * time.Second},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

package config

import (
	"time"

	"github.com/cartpay/cartpay/internal/types"
)

// Webhook represents the configuration for the webhook delivery system
type Webhook struct {
	Enabled bool             `mapstructure:"enabled"`
	Topic   string           `mapstructure:"topic" default:"webhooks"`
	PubSub  types.PubSubType `mapstructure:"pubsub" default:"memory"`

	// Delivery endpoint for cart payment lifecycle events
	Endpoint string            `mapstructure:"endpoint"`
	Headers  map[string]string `mapstructure:"headers"`

	// Retry tuning for the message router
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

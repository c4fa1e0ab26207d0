package stripe

import (
	"github.com/stripe/stripe-go/v82"

	"github.com/cartpay/cartpay/internal/config"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/logger"
)

// Client handles Stripe API client setup and configuration
type Client struct {
	cfg    *config.Configuration
	logger *logger.Logger
	client *stripe.Client
}

// NewClient creates a new Stripe client from the service configuration
func NewClient(cfg *config.Configuration, logger *logger.Logger) (*Client, error) {
	if cfg.Stripe.SecretKey == "" {
		return nil, ierr.NewError("stripe secret key not configured").
			WithHint("Set stripe.secret_key in the configuration").
			Mark(ierr.ErrValidation)
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		client: stripe.NewClient(cfg.Stripe.SecretKey, nil),
	}, nil
}

// Get returns the configured Stripe API client
func (c *Client) Get() *stripe.Client {
	return c.client
}

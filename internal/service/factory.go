package service

import (
	"github.com/cartpay/cartpay/internal/cache"
	"github.com/cartpay/cartpay/internal/config"
	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	"github.com/cartpay/cartpay/internal/domain/legacycharge"
	"github.com/cartpay/cartpay/internal/domain/payer"
	"github.com/cartpay/cartpay/internal/domain/paymentmethod"
	"github.com/cartpay/cartpay/internal/gateway"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/postgres"
	"github.com/cartpay/cartpay/internal/publisher"
)

// NewServiceParams assembles the common service dependencies for fx
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	cartPaymentRepo cartpayment.Repository,
	legacyChargeRepo legacycharge.Repository,
	payerRepo payer.Repository,
	paymentMethodRepo paymentmethod.Repository,
	gw gateway.Gateway,
	eventPublisher publisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:            logger,
		Config:            config,
		DB:                db,
		Cache:             cache,
		CartPaymentRepo:   cartPaymentRepo,
		LegacyChargeRepo:  legacyChargeRepo,
		PayerRepo:         payerRepo,
		PaymentMethodRepo: paymentMethodRepo,
		Gateway:           gw,
		EventPublisher:    eventPublisher,
	}
}

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	// Repositories
	CartPaymentRepo   cartpayment.Repository
	LegacyChargeRepo  legacycharge.Repository
	PayerRepo         payer.Repository
	PaymentMethodRepo paymentmethod.Repository

	// Collaborators
	Gateway        gateway.Gateway
	EventPublisher publisher.EventPublisher
}

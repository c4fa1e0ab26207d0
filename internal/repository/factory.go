package repository

import (
	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	"github.com/cartpay/cartpay/internal/domain/legacycharge"
	"github.com/cartpay/cartpay/internal/domain/payer"
	"github.com/cartpay/cartpay/internal/domain/paymentmethod"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/postgres"
	postgresRepo "github.com/cartpay/cartpay/internal/repository/postgres"
)

func NewCartPaymentRepository(db *postgres.DB, logger *logger.Logger) cartpayment.Repository {
	return postgresRepo.NewCartPaymentRepository(db, logger)
}

func NewLegacyChargeRepository(db *postgres.DB, logger *logger.Logger) legacycharge.Repository {
	return postgresRepo.NewLegacyChargeRepository(db, logger)
}

func NewPayerRepository(db *postgres.DB, logger *logger.Logger) payer.Repository {
	return postgresRepo.NewPayerRepository(db, logger)
}

func NewPaymentMethodRepository(db *postgres.DB, logger *logger.Logger) paymentmethod.Repository {
	return postgresRepo.NewPaymentMethodRepository(db, logger)
}

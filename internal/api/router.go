package api

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/cartpay/cartpay/internal/api/v1"
	"github.com/cartpay/cartpay/internal/config"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/rest/middleware"
)

type Handlers struct {
	Health      *v1.HealthHandler
	CartPayment *v1.CartPaymentHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	logger.Debugw("registered api routes", "routes", len(router.Routes()))
	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	cartPayments := router.Group("/cart_payments")
	{
		cartPayments.POST("", handlers.CartPayment.CreateCartPayment)
		cartPayments.GET("/:id", handlers.CartPayment.GetCartPayment)
		cartPayments.POST("/:id/adjust", handlers.CartPayment.UpdateCartPayment)
		cartPayments.POST("/:id/cancel", handlers.CartPayment.CancelCartPayment)
	}

	legacy := router.Group("/legacy")
	{
		legacy.POST("/cart_payments", handlers.CartPayment.LegacyCreateCartPayment)
		legacy.POST("/charges/:charge_id/adjust", handlers.CartPayment.UpdateLegacyCharge)
		legacy.POST("/charges/:charge_id/cancel", handlers.CartPayment.CancelLegacyCharge)
	}
}

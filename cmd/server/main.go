package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/cartpay/cartpay/internal/api"
	v1 "github.com/cartpay/cartpay/internal/api/v1"
	"github.com/cartpay/cartpay/internal/cache"
	"github.com/cartpay/cartpay/internal/config"
	"github.com/cartpay/cartpay/internal/gateway"
	"github.com/cartpay/cartpay/internal/httpclient"
	stripegw "github.com/cartpay/cartpay/internal/integration/stripe"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/postgres"
	"github.com/cartpay/cartpay/internal/publisher"
	pubsubRouter "github.com/cartpay/cartpay/internal/pubsub/router"
	"github.com/cartpay/cartpay/internal/repository"
	"github.com/cartpay/cartpay/internal/sentry"
	"github.com/cartpay/cartpay/internal/service"
	"github.com/cartpay/cartpay/internal/types"
	"github.com/cartpay/cartpay/internal/validator"
	"github.com/cartpay/cartpay/internal/webhook"
	webhookHandler "github.com/cartpay/cartpay/internal/webhook/handler"
)

// @title Cart Payment API
// @version 1.0
// @description Cart payment orchestration service
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			validator.NewValidator,
			config.NewConfig,
			logger.NewLogger,
			sentry.NewSentryService,
			cache.NewInMemoryCache,

			postgres.NewDB,
			func(db *postgres.DB) postgres.IClient { return db },

			httpclient.NewDefaultClient,

			// Repositories
			repository.NewCartPaymentRepository,
			repository.NewLegacyChargeRepository,
			repository.NewPayerRepository,
			repository.NewPaymentMethodRepository,

			// PSP gateway
			stripegw.NewClient,
			provideGateway,

			// PubSub router
			pubsubRouter.NewRouter,

			// Event publisher
			publisher.NewEventPublisher,
		),
	)

	// Webhook module
	opts = append(opts, webhook.Module)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewCartPaymentService,
			service.NewLegacyPaymentService,
			service.NewPayerService,
			service.NewPaymentMethodService,
			service.NewCartPaymentProcessor,
			provideCaptureSweeper,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideGateway(client *stripegw.Client, cfg *config.Configuration, logger *logger.Logger) gateway.Gateway {
	return stripegw.NewGateway(client, cfg, logger)
}

func provideCaptureSweeper(params service.ServiceParams, processor service.CartPaymentProcessor) service.CaptureSweeper {
	return service.NewCaptureSweeper(params, processor)
}

func provideHandlers(
	logger *logger.Logger,
	processor service.CartPaymentProcessor,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(logger),
		CartPayment: v1.NewCartPaymentHandler(processor, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	handler webhookHandler.Handler,
	sweeper service.CaptureSweeper,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, handler, log)
		startCaptureSweeper(lc, sweeper, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, handler, log)
	case types.ModeSweeper:
		startCaptureSweeper(lc, sweeper, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	handler webhookHandler.Handler,
	log *logger.Logger,
) {
	// Register handlers before starting the router
	handler.RegisterHandler(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting message router")
			go func() {
				if err := router.Run(); err != nil {
					log.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping message router")
			return router.Close()
		},
	})
}

func startCaptureSweeper(
	lc fx.Lifecycle,
	sweeper service.CaptureSweeper,
	log *logger.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting capture sweeper")
			go func() {
				if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
					log.Errorw("capture sweeper failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			log.Info("stopping capture sweeper")
			cancel()
			return nil
		},
	})
}

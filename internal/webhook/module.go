package webhook

import (
	"go.uber.org/fx"

	"github.com/cartpay/cartpay/internal/config"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/pubsub"
	"github.com/cartpay/cartpay/internal/pubsub/memory"
	"github.com/cartpay/cartpay/internal/types"
	"github.com/cartpay/cartpay/internal/webhook/handler"
	"github.com/cartpay/cartpay/internal/webhook/publisher"
)

// Module provides the webhook pipeline: pubsub, publisher, and the delivery
// handler
var Module = fx.Options(
	fx.Provide(
		providePubSub,
		publisher.NewPublisher,
		handler.NewHandler,
	),
)

func providePubSub(
	cfg *config.Configuration,
	logger *logger.Logger,
) pubsub.PubSub {
	switch cfg.Webhook.PubSub {
	case types.MemoryPubSub:
		return memory.NewPubSub(cfg, logger)
	}
	panic("unsupported pubsub type")
}

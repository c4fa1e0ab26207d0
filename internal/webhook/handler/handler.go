package handler

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/cartpay/cartpay/internal/config"
	"github.com/cartpay/cartpay/internal/httpclient"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/pubsub"
	pubsubRouter "github.com/cartpay/cartpay/internal/pubsub/router"
	"github.com/cartpay/cartpay/internal/types"
)

// Handler consumes webhook events off the bus and delivers them to the
// configured endpoint
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub pubsub.PubSub
	config *config.Webhook
	client httpclient.Client
	logger *logger.Logger
}

func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	client httpclient.Client,
	logger *logger.Logger,
) (Handler, error) {
	return &handler{
		pubSub: pubSub,
		config: &cfg.Webhook,
		client: client,
		logger: logger,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"webhook_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

func (h *handler) processMessage(msg *message.Message) error {
	ctx := msg.Context()

	var event types.WebhookEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal webhook event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		// A malformed payload never becomes well formed; don't retry
		return nil
	}

	ctx = context.WithValue(ctx, types.CtxTenantID, event.TenantID)
	ctx = context.WithValue(ctx, types.CtxUserID, event.UserID)

	return h.deliver(ctx, &event, msg.UUID)
}

func (h *handler) deliver(ctx context.Context, event *types.WebhookEvent, messageUUID string) error {
	if !h.config.Enabled || h.config.Endpoint == "" {
		h.logger.Debugw("webhook delivery disabled, dropping event",
			"event_name", event.EventName,
			"message_uuid", messageUUID,
		)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req := &httpclient.Request{
		Method:  "POST",
		URL:     h.config.Endpoint,
		Headers: h.config.Headers,
		Body:    body,
	}

	resp, err := h.client.Send(ctx, req)
	if err != nil {
		h.logger.Errorw("failed to deliver webhook",
			"error", err,
			"message_uuid", messageUUID,
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return err
	}

	h.logger.Infow("webhook delivered",
		"message_uuid", messageUUID,
		"tenant_id", event.TenantID,
		"event", event.EventName,
		"status_code", resp.StatusCode,
	)
	return nil
}

package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/types"
	webhookPublisher "github.com/cartpay/cartpay/internal/webhook/publisher"
)

// EventPublisher emits payment lifecycle events. Services call it after state
// changes commit; delivery failures are logged, never surfaced to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, eventName string, payload interface{})
}

type eventPublisher struct {
	webhook webhookPublisher.WebhookPublisher
	logger  *logger.Logger
}

func NewEventPublisher(webhook webhookPublisher.WebhookPublisher, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		webhook: webhook,
		logger:  logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, eventName string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Errorw("failed to marshal event payload",
			"error", err,
			"event_name", eventName,
		)
		return
	}

	event := &types.WebhookEvent{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		EventName:     eventName,
		TenantID:      types.GetTenantID(ctx),
		EnvironmentID: types.GetEnvironmentID(ctx),
		UserID:        types.GetUserID(ctx),
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}

	if err := p.webhook.PublishWebhook(ctx, event); err != nil {
		p.logger.Errorw("failed to publish event",
			"error", err,
			"event_name", eventName,
		)
	}
}

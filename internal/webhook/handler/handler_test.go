package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartpay/cartpay/internal/config"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/httpclient"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/types"
)

type fakeHTTPClient struct {
	requests []*httpclient.Request
	err      error
}

func (c *fakeHTTPClient) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return &httpclient.Response{StatusCode: 200}, nil
}

func newTestHandler(t *testing.T, client httpclient.Client, enabled bool) *handler {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Webhook.Enabled = enabled
	cfg.Webhook.Endpoint = "https://example.com/webhooks"
	cfg.Webhook.Headers = map[string]string{"X-Api-Key": "secret"}

	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	h, err := NewHandler(nil, cfg, client, log)
	require.NoError(t, err)
	return h.(*handler)
}

func testEventPayload(t *testing.T) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"id": "cart_payment_1"})
	require.NoError(t, err)

	body, err := json.Marshal(&types.WebhookEvent{
		ID:        types.GenerateUUID(),
		EventName: types.WebhookEventCartPaymentCreated,
		TenantID:  types.DefaultTenantID,
		UserID:    types.DefaultUserID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	require.NoError(t, err)
	return body
}

func TestProcessMessageDeliversEvent(t *testing.T) {
	client := &fakeHTTPClient{}
	h := newTestHandler(t, client, true)

	msg := message.NewMessage(watermill.NewUUID(), testEventPayload(t))
	require.NoError(t, h.processMessage(msg))

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://example.com/webhooks", req.URL)
	assert.Equal(t, "secret", req.Headers["X-Api-Key"])

	var delivered types.WebhookEvent
	require.NoError(t, json.Unmarshal(req.Body, &delivered))
	assert.Equal(t, types.WebhookEventCartPaymentCreated, delivered.EventName)
}

func TestProcessMessageReturnsDeliveryError(t *testing.T) {
	client := &fakeHTTPClient{
		err: ierr.NewError("endpoint unreachable").Mark(ierr.ErrHTTPClient),
	}
	h := newTestHandler(t, client, true)

	msg := message.NewMessage(watermill.NewUUID(), testEventPayload(t))
	assert.Error(t, h.processMessage(msg))
	assert.Len(t, client.requests, 1)
}

func TestProcessMessageDropsMalformedPayload(t *testing.T) {
	client := &fakeHTTPClient{}
	h := newTestHandler(t, client, true)

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	// Malformed payloads are dropped, never retried
	assert.NoError(t, h.processMessage(msg))
	assert.Empty(t, client.requests)
}

func TestProcessMessageSkipsWhenDisabled(t *testing.T) {
	client := &fakeHTTPClient{}
	h := newTestHandler(t, client, false)

	msg := message.NewMessage(watermill.NewUUID(), testEventPayload(t))
	assert.NoError(t, h.processMessage(msg))
	assert.Empty(t, client.requests)
}

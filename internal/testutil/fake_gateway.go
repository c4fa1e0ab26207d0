package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cartpay/cartpay/internal/gateway"
	"github.com/cartpay/cartpay/internal/types"
)

var _ gateway.Gateway = (*FakeGateway)(nil)

// FakeGateway is a scriptable provider for service tests. By default it
// succeeds with deterministic resource ids; tests can inject per-operation
// errors or enable commando mode to get provisional results.
type FakeGateway struct {
	mu       sync.Mutex
	commando bool
	seq      int

	// Scripted failures, consumed on the next matching call
	CreateErr  error
	CaptureErr error
	CancelErr  error
	RefundErr  error

	CreateCalls  []*gateway.CreateIntentRequest
	CaptureCalls []*gateway.CaptureIntentRequest
	CancelCalls  []*gateway.CancelIntentRequest
	RefundCalls  []*gateway.RefundRequest
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (g *FakeGateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
	g.CreateErr, g.CaptureErr, g.CancelErr, g.RefundErr = nil, nil, nil, nil
	g.CreateCalls = nil
	g.CaptureCalls = nil
	g.CancelCalls = nil
	g.RefundCalls = nil
}

func (g *FakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_test_%d", prefix, g.seq)
}

func (g *FakeGateway) CreatePaymentIntent(ctx context.Context, req *gateway.CreateIntentRequest) (*gateway.ProviderIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CreateCalls = append(g.CreateCalls, req)

	if g.commando {
		intent := &gateway.ProviderIntent{
			Status:      types.PaymentIntentStatusSucceeded,
			Amount:      req.Amount,
			Currency:    req.Currency,
			Provisional: true,
		}
		if req.CaptureMethod == types.CaptureMethodManual {
			intent.Status = types.PaymentIntentStatusRequiresCapture
			intent.AmountCapturable = req.Amount
		} else {
			intent.AmountReceived = req.Amount
		}
		return intent, nil
	}

	if g.CreateErr != nil {
		err := g.CreateErr
		g.CreateErr = nil
		return nil, err
	}

	intent := &gateway.ProviderIntent{
		ResourceID:       g.nextID("pi"),
		ChargeResourceID: g.nextID("ch"),
		Status:           types.PaymentIntentStatusSucceeded,
		Amount:           req.Amount,
		Currency:         req.Currency,
	}
	if req.CaptureMethod == types.CaptureMethodManual {
		intent.Status = types.PaymentIntentStatusRequiresCapture
		intent.AmountCapturable = req.Amount
	} else {
		intent.AmountReceived = req.Amount
	}
	return intent, nil
}

func (g *FakeGateway) CapturePaymentIntent(ctx context.Context, req *gateway.CaptureIntentRequest) (*gateway.ProviderIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CaptureCalls = append(g.CaptureCalls, req)

	if g.commando {
		return &gateway.ProviderIntent{
			ResourceID:     req.ResourceID,
			Status:         types.PaymentIntentStatusSucceeded,
			Amount:         req.AmountToCapture,
			AmountReceived: req.AmountToCapture,
			Provisional:    true,
		}, nil
	}

	if g.CaptureErr != nil {
		err := g.CaptureErr
		g.CaptureErr = nil
		return nil, err
	}

	return &gateway.ProviderIntent{
		ResourceID:       req.ResourceID,
		ChargeResourceID: g.nextID("ch"),
		Status:           types.PaymentIntentStatusSucceeded,
		Amount:           req.AmountToCapture,
		AmountReceived:   req.AmountToCapture,
	}, nil
}

func (g *FakeGateway) CancelPaymentIntent(ctx context.Context, req *gateway.CancelIntentRequest) (*gateway.ProviderIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CancelCalls = append(g.CancelCalls, req)

	if g.commando {
		return &gateway.ProviderIntent{
			ResourceID:  req.ResourceID,
			Status:      types.PaymentIntentStatusCancelled,
			Provisional: true,
		}, nil
	}

	if g.CancelErr != nil {
		err := g.CancelErr
		g.CancelErr = nil
		return nil, err
	}

	return &gateway.ProviderIntent{
		ResourceID: req.ResourceID,
		Status:     types.PaymentIntentStatusCancelled,
	}, nil
}

func (g *FakeGateway) RefundCharge(ctx context.Context, req *gateway.RefundRequest) (*gateway.ProviderRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RefundCalls = append(g.RefundCalls, req)

	if g.commando {
		return &gateway.ProviderRefund{
			Status: types.RefundStatusProcessing,
			Amount: req.Amount,
		}, nil
	}

	if g.RefundErr != nil {
		err := g.RefundErr
		g.RefundErr = nil
		return nil, err
	}

	return &gateway.ProviderRefund{
		ResourceID: g.nextID("re"),
		Status:     types.RefundStatusSucceeded,
		Amount:     req.Amount,
	}, nil
}

func (g *FakeGateway) SetCommandoMode(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commando = enabled
}

func (g *FakeGateway) CommandoMode() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commando
}

// RefundedTotal sums the amounts of all refund calls, useful for asserting
// adjust-down accounting
func (g *FakeGateway) RefundedTotal() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := decimal.Zero
	for _, call := range g.RefundCalls {
		total = total.Add(call.Amount)
	}
	return total
}

package service

import (
	"context"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/cartpay/cartpay/internal/api/dto"
	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	"github.com/cartpay/cartpay/internal/domain/payer"
	"github.com/cartpay/cartpay/internal/domain/paymentmethod"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/testutil"
	"github.com/cartpay/cartpay/internal/types"
)

type CartPaymentProcessorSuite struct {
	testutil.BaseServiceTestSuite
	processor CartPaymentProcessor
	payer     *payer.Payer
	method    *paymentmethod.PaymentMethod
}

func TestCartPaymentProcessorSuite(t *testing.T) {
	suite.Run(t, new(CartPaymentProcessorSuite))
}

func (s *CartPaymentProcessorSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.processor = NewCartPaymentProcessor(s.params())
	s.seedPayer()
}

func (s *CartPaymentProcessorSuite) params() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		DB:                s.GetDB(),
		Cache:             s.GetCache(),
		CartPaymentRepo:   stores.CartPaymentRepo,
		LegacyChargeRepo:  stores.LegacyChargeRepo,
		PayerRepo:         stores.PayerRepo,
		PaymentMethodRepo: stores.PaymentMethodRepo,
		Gateway:           s.GetGateway(),
		EventPublisher:    s.GetPublisher(),
	}
}

func (s *CartPaymentProcessorSuite) seedPayer() {
	s.payer = &payer.Payer{
		ID:                 "payer_test_1",
		ProviderCustomerID: "cus_test_1",
		Country:            "US",
		LegacyConsumerID:   101,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PayerRepo.Create(s.GetContext(), s.payer))

	s.method = &paymentmethod.PaymentMethod{
		ID:                 "pm_test_1",
		PayerID:            s.payer.ID,
		ProviderResourceID: "pm_res_1",
		LegacyCardID:       lo.ToPtr(int64(202)),
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PaymentMethodRepo.Create(s.GetContext(), s.method))
}

func (s *CartPaymentProcessorSuite) cartPaymentStore() *testutil.InMemoryCartPaymentStore {
	return s.GetStores().CartPaymentRepo.(*testutil.InMemoryCartPaymentStore)
}

// staleProbeStore simulates a reader whose first idempotency probe ran before
// a concurrent writer with the same key committed
type staleProbeStore struct {
	cartpayment.Repository
	stale int
}

func (s *staleProbeStore) GetPaymentIntentByPayerAndKey(ctx context.Context, payerID, key string) (*cartpayment.PaymentIntent, error) {
	if s.stale > 0 {
		s.stale--
		return nil, nil
	}
	return s.Repository.GetPaymentIntentByPayerAndKey(ctx, payerID, key)
}

func (s *CartPaymentProcessorSuite) createRequest(amount int64, delayCapture bool) *dto.CreateCartPaymentRequest {
	return &dto.CreateCartPaymentRequest{
		IdempotencyKey:  "create-key-1",
		PayerID:         s.payer.ID,
		PaymentMethodID: s.method.ID,
		Amount:          decimal.NewFromInt(amount),
		Currency:        "usd",
		Country:         "US",
		DelayCapture:    lo.ToPtr(delayCapture),
	}
}

func (s *CartPaymentProcessorSuite) TestCreatePaymentAutoCapture() {
	resp, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)
	s.Require().NotNil(resp)
	s.Require().Len(resp.PaymentIntents, 1)

	intent := resp.PaymentIntents[0]
	s.Equal(types.PaymentIntentStatusSucceeded, intent.IntentStatus)
	s.Equal(types.CaptureMethodAuto, intent.CaptureMethod)
	s.True(intent.AmountReceived.Equal(decimal.NewFromInt(100)))
	s.Nil(intent.CaptureAfter)

	charge, err := s.GetStores().LegacyChargeRepo.GetConsumerChargeByCartPaymentID(s.GetContext(), resp.ID)
	s.NoError(err)
	s.True(charge.OriginalTotal.Equal(decimal.NewFromInt(100)))

	stripeCharges, err := s.GetStores().LegacyChargeRepo.ListStripeCharges(s.GetContext(), charge.ID)
	s.NoError(err)
	s.Require().Len(stripeCharges, 1)
	s.Equal(types.LegacyChargeStatusSucceeded, stripeCharges[0].ChargeStatus)

	s.Contains(s.GetPublisher().EventNames(), types.WebhookEventCartPaymentCreated)
}

func (s *CartPaymentProcessorSuite) TestCreatePaymentManualCapture() {
	resp, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, true))
	s.NoError(err)
	s.Require().Len(resp.PaymentIntents, 1)

	intent := resp.PaymentIntents[0]
	s.Equal(types.PaymentIntentStatusRequiresCapture, intent.IntentStatus)
	s.Equal(types.CaptureMethodManual, intent.CaptureMethod)
	s.True(intent.AmountCapturable.Equal(decimal.NewFromInt(100)))
	s.True(intent.AmountReceived.IsZero())
	s.Require().NotNil(intent.CaptureAfter)
	s.True(intent.CaptureAfter.After(s.GetNow()))
}

func (s *CartPaymentProcessorSuite) TestCreatePaymentIdempotentReplay() {
	req := s.createRequest(100, false)

	first, err := s.processor.CreatePayment(s.GetContext(), req)
	s.NoError(err)

	second, err := s.processor.CreatePayment(s.GetContext(), req)
	s.NoError(err)

	s.Equal(first.ID, second.ID)
	s.Len(s.GetGateway().CreateCalls, 1)
	s.Len(second.PaymentIntents, 1)
}

func (s *CartPaymentProcessorSuite) TestCreatePaymentProviderFailure() {
	s.GetGateway().CreateErr = ierr.NewError("card declined").
		WithHint("The card was declined").
		Mark(ierr.ErrProvider)

	_, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.Error(err)

	// The intent and its projections must be stamped FAILED
	probe, err := s.GetStores().CartPaymentRepo.GetPaymentIntentByPayerAndKey(s.GetContext(), s.payer.ID, "create-key-1")
	s.NoError(err)
	s.Require().NotNil(probe)
	s.Equal(types.PaymentIntentStatusFailed, probe.IntentStatus)

	pgps, err := s.GetStores().CartPaymentRepo.ListPgpPaymentIntents(s.GetContext(), probe.ID)
	s.NoError(err)
	s.Require().Len(pgps, 1)
	s.Equal(types.PaymentIntentStatusFailed, pgps[0].IntentStatus)
	s.NotNil(pgps[0].ErrorCode)
	s.NotNil(pgps[0].ErrorMessage)

	charge, err := s.GetStores().LegacyChargeRepo.FindChargeByIdempotencyKey(s.GetContext(), probe.LegacyConsumerChargeID, "create-key-1")
	s.NoError(err)
	s.Require().NotNil(charge)
	s.Equal(types.LegacyChargeStatusFailed, charge.ChargeStatus)

	s.Contains(s.GetPublisher().EventNames(), types.WebhookEventPaymentIntentFailed)
}

func (s *CartPaymentProcessorSuite) TestCreatePaymentCommandoMode() {
	s.GetGateway().SetCommandoMode(true)

	resp, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, true))
	s.NoError(err)
	s.Require().Len(resp.PaymentIntents, 1)
	s.Equal(types.PaymentIntentStatusRequiresCapture, resp.PaymentIntents[0].IntentStatus)

	// Commando results carry no provider resource id
	pgps, err := s.GetStores().CartPaymentRepo.ListPgpPaymentIntents(s.GetContext(), resp.PaymentIntents[0].ID)
	s.NoError(err)
	s.Require().Len(pgps, 1)
	s.Nil(pgps[0].ResourceID)
}

func (s *CartPaymentProcessorSuite) TestCreatePaymentNegativeAmount() {
	req := s.createRequest(100, false)
	req.Amount = decimal.NewFromInt(-5)

	_, err := s.processor.CreatePayment(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsCartPaymentAmountInvalid(err))
	s.Empty(s.GetGateway().CreateCalls)
}

func (s *CartPaymentProcessorSuite) TestCreatePaymentResumesInitIntent() {
	// First attempt dies at the provider without stamping anything
	s.GetGateway().CreateErr = ierr.NewError("connection reset").
		Mark(ierr.ErrProviderUnavailable)
	_, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.Error(err)

	// Reset the intent to INIT to simulate a crash before the error stamp
	probe, err := s.GetStores().CartPaymentRepo.GetPaymentIntentByPayerAndKey(s.GetContext(), s.payer.ID, "create-key-1")
	s.NoError(err)
	s.Require().NotNil(probe)
	probe.IntentStatus = types.PaymentIntentStatusInit
	s.NoError(s.GetStores().CartPaymentRepo.UpdatePaymentIntent(s.GetContext(), probe))

	// Replay with the same key resumes provider submission
	resp, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)
	s.Require().Len(resp.PaymentIntents, 1)
	s.Equal(types.PaymentIntentStatusSucceeded, resp.PaymentIntents[0].IntentStatus)
	s.Len(s.GetGateway().CreateCalls, 2)
}

func (s *CartPaymentProcessorSuite) TestAdjustDownBeforeCapture() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, true))
	s.NoError(err)

	resp, err := s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(80),
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(80)))
	s.Require().Len(resp.PaymentIntents, 1)
	s.True(resp.PaymentIntents[0].Amount.Equal(decimal.NewFromInt(80)))
	s.True(resp.PaymentIntents[0].AmountCapturable.Equal(decimal.NewFromInt(80)))

	// No provider interaction before capture
	s.Empty(s.GetGateway().RefundCalls)

	adj, err := s.GetStores().CartPaymentRepo.GetAdjustmentHistoryForIdempotencyKey(s.GetContext(), resp.PaymentIntents[0].ID, "adjust-key-1")
	s.NoError(err)
	s.Require().NotNil(adj)
	s.True(adj.AmountDelta.Equal(decimal.NewFromInt(-20)))
	s.True(adj.AmountOriginal.Equal(decimal.NewFromInt(100)))

	s.Contains(s.GetPublisher().EventNames(), types.WebhookEventCartPaymentUpdated)
}

func (s *CartPaymentProcessorSuite) TestAdjustDownAfterCapture() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	resp, err := s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(70),
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(70)))

	s.Require().Len(s.GetGateway().RefundCalls, 1)
	s.True(s.GetGateway().RefundCalls[0].Amount.Equal(decimal.NewFromInt(30)))

	// Domain amount drops, received keeps its historical value
	intent := resp.PaymentIntents[0]
	s.Equal(types.PaymentIntentStatusSucceeded, intent.IntentStatus)
	s.True(intent.Amount.Equal(decimal.NewFromInt(70)))
	s.True(intent.AmountReceived.Equal(decimal.NewFromInt(100)))

	charge, err := s.GetStores().LegacyChargeRepo.GetConsumerChargeByCartPaymentID(s.GetContext(), created.ID)
	s.NoError(err)
	stripeCharges, err := s.GetStores().LegacyChargeRepo.ListStripeCharges(s.GetContext(), charge.ID)
	s.NoError(err)
	s.Require().Len(stripeCharges, 1)
	s.True(stripeCharges[0].AmountRefunded.Equal(decimal.NewFromInt(30)))
	// original_total never moves
	s.True(charge.OriginalTotal.Equal(decimal.NewFromInt(100)))

	// The provider mirror keeps its historical charged amounts
	pgps, err := s.GetStores().CartPaymentRepo.ListPgpPaymentIntents(s.GetContext(), intent.ID)
	s.NoError(err)
	s.Require().Len(pgps, 1)
	s.True(pgps[0].Amount.Equal(decimal.NewFromInt(100)))
	s.True(pgps[0].AmountReceived.Equal(decimal.NewFromInt(100)))
	s.Equal(types.PaymentIntentStatusSucceeded, pgps[0].IntentStatus)

	// The refund accounting ran under the cart payment's row lock
	s.Positive(s.cartPaymentStore().LockCalls())
}

func (s *CartPaymentProcessorSuite) TestCreatePaymentConcurrentSameKey() {
	req := s.createRequest(100, false)

	winner, err := s.processor.CreatePayment(s.GetContext(), req)
	s.NoError(err)

	// The losing caller probed before the winner committed; its insert hits
	// the unique key and it re-probes to converge on the winner's payment
	params := s.params()
	params.CartPaymentRepo = &staleProbeStore{Repository: params.CartPaymentRepo, stale: 1}
	loser := NewCartPaymentProcessor(params)

	resp, err := loser.CreatePayment(s.GetContext(), req)
	s.NoError(err)
	s.Equal(winner.ID, resp.ID)
	s.Len(s.GetGateway().CreateCalls, 1)
}

func (s *CartPaymentProcessorSuite) TestAdjustDownRedrivesProcessingRefund() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)
	intentID := created.PaymentIntents[0].ID

	req := &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(70),
	}

	// The provider dies mid-refund; the refund row stays processing
	s.GetGateway().RefundErr = ierr.NewError("connection reset").
		Mark(ierr.ErrProviderUnavailable)
	_, err = s.processor.UpdatePayment(s.GetContext(), created.ID, req)
	s.Error(err)

	refund, err := s.GetStores().CartPaymentRepo.GetRefundForIdempotencyKey(s.GetContext(), intentID, "adjust-key-1")
	s.NoError(err)
	s.Require().NotNil(refund)
	s.Equal(types.RefundStatusProcessing, refund.RefundStatus)

	// The retry re-drives the same refund row instead of creating another
	resp, err := s.processor.UpdatePayment(s.GetContext(), created.ID, req)
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(70)))

	refund, err = s.GetStores().CartPaymentRepo.GetRefundForIdempotencyKey(s.GetContext(), intentID, "adjust-key-1")
	s.NoError(err)
	s.Equal(types.RefundStatusSucceeded, refund.RefundStatus)

	refunds, err := s.GetStores().CartPaymentRepo.ListRefunds(s.GetContext(), intentID)
	s.NoError(err)
	s.Len(refunds, 1)
	s.Len(s.GetGateway().RefundCalls, 2)

	// A missing pgp refund is a miss, not an error, like the sql repository
	missing, err := s.GetStores().CartPaymentRepo.GetPgpRefundByRefundID(s.GetContext(), "refund_missing")
	s.NoError(err)
	s.Nil(missing)
}

func (s *CartPaymentProcessorSuite) TestAdjustDownTwiceAccumulatesRefunds() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	_, err = s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(70),
	})
	s.NoError(err)

	// A partially refunded intent can be refunded again
	resp, err := s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-2",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(50),
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(50)))
	s.True(resp.PaymentIntents[0].Amount.Equal(decimal.NewFromInt(50)))

	s.Require().Len(s.GetGateway().RefundCalls, 2)
	s.True(s.GetGateway().RefundedTotal().Equal(decimal.NewFromInt(50)))

	charge, err := s.GetStores().LegacyChargeRepo.GetConsumerChargeByCartPaymentID(s.GetContext(), created.ID)
	s.NoError(err)
	stripeCharges, err := s.GetStores().LegacyChargeRepo.ListStripeCharges(s.GetContext(), charge.ID)
	s.NoError(err)
	s.True(stripeCharges[0].AmountRefunded.Equal(decimal.NewFromInt(50)))
}

func (s *CartPaymentProcessorSuite) TestCancelFullyRefundedPayment() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	_, err = s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.Zero,
	})
	s.NoError(err)

	// A fully refunded intent holds no money; cancel touches the provider no
	// further
	resp, err := s.processor.CancelPayment(s.GetContext(), created.ID)
	s.NoError(err)
	s.True(resp.Amount.IsZero())
	s.NotNil(resp.DeletedAt)
	s.Len(s.GetGateway().RefundCalls, 1)
	s.Empty(s.GetGateway().CancelCalls)
}

func (s *CartPaymentProcessorSuite) TestAdjustDownReplayIsNoOp() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	req := &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(70),
	}
	first, err := s.processor.UpdatePayment(s.GetContext(), created.ID, req)
	s.NoError(err)
	second, err := s.processor.UpdatePayment(s.GetContext(), created.ID, req)
	s.NoError(err)

	s.True(first.Amount.Equal(second.Amount))
	s.Len(s.GetGateway().RefundCalls, 1)
}

func (s *CartPaymentProcessorSuite) TestAdjustUpWithinAuthorizedLimit() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, true))
	s.NoError(err)

	_, err = s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-down",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(60),
	})
	s.NoError(err)

	// Raising back within the original authorization stays in place
	resp, err := s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-up",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(90),
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(90)))
	s.Require().Len(resp.PaymentIntents, 1)
	s.True(resp.PaymentIntents[0].AmountCapturable.Equal(decimal.NewFromInt(90)))
	s.Len(s.GetGateway().CreateCalls, 1)
	s.Empty(s.GetGateway().RefundCalls)
}

func (s *CartPaymentProcessorSuite) TestAdjustUpBeyondCapturedAmount() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	resp, err := s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-up",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(150),
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(150)))
	s.Require().Len(resp.PaymentIntents, 2)

	// The replacement is charged in full, the prior fully refunded
	s.Len(s.GetGateway().CreateCalls, 2)
	s.Require().Len(s.GetGateway().RefundCalls, 1)
	s.True(s.GetGateway().RefundCalls[0].Amount.Equal(decimal.NewFromInt(100)))

	prior := resp.PaymentIntents[0]
	replacement := resp.PaymentIntents[1]
	s.True(prior.Amount.IsZero())
	s.True(replacement.Amount.Equal(decimal.NewFromInt(150)))
	s.Equal(types.PaymentIntentStatusSucceeded, replacement.IntentStatus)
}

func (s *CartPaymentProcessorSuite) TestAdjustZeroDeltaIsNoOp() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	resp, err := s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(100),
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(100)))
	s.Len(s.GetGateway().CreateCalls, 1)
	s.Empty(s.GetGateway().RefundCalls)
	s.NotContains(s.GetPublisher().EventNames(), types.WebhookEventCartPaymentUpdated)
}

func (s *CartPaymentProcessorSuite) TestAdjustNegativeAmountRejected() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	_, err = s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(-10),
	})
	s.Error(err)
	s.True(ierr.IsCartPaymentAmountInvalid(err))
}

func (s *CartPaymentProcessorSuite) TestCancelBeforeCapture() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, true))
	s.NoError(err)

	resp, err := s.processor.CancelPayment(s.GetContext(), created.ID)
	s.NoError(err)
	s.True(resp.Amount.IsZero())
	s.NotNil(resp.DeletedAt)

	s.Require().Len(s.GetGateway().CancelCalls, 1)
	s.Empty(s.GetGateway().RefundCalls)

	intent := resp.PaymentIntents[0]
	s.Equal(types.PaymentIntentStatusCancelled, intent.IntentStatus)
	s.True(intent.Amount.IsZero())
	s.True(intent.AmountCapturable.IsZero())

	charge, err := s.GetStores().LegacyChargeRepo.GetConsumerChargeByCartPaymentID(s.GetContext(), created.ID)
	s.NoError(err)
	stripeCharges, err := s.GetStores().LegacyChargeRepo.ListStripeCharges(s.GetContext(), charge.ID)
	s.NoError(err)
	s.Equal(types.LegacyChargeStatusCancelled, stripeCharges[0].ChargeStatus)

	s.Contains(s.GetPublisher().EventNames(), types.WebhookEventCartPaymentCancelled)
}

func (s *CartPaymentProcessorSuite) TestCancelAfterCapture() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	resp, err := s.processor.CancelPayment(s.GetContext(), created.ID)
	s.NoError(err)
	s.True(resp.Amount.IsZero())

	// A captured intent is refunded, not cancelled at the provider
	s.Empty(s.GetGateway().CancelCalls)
	s.Require().Len(s.GetGateway().RefundCalls, 1)
	s.True(s.GetGateway().RefundCalls[0].Amount.Equal(decimal.NewFromInt(100)))

	intent := resp.PaymentIntents[0]
	s.Equal(types.PaymentIntentStatusSucceeded, intent.IntentStatus)
	s.True(intent.Amount.IsZero())
	s.True(intent.AmountReceived.Equal(decimal.NewFromInt(100)))

	s.Positive(s.cartPaymentStore().LockCalls())
}

func (s *CartPaymentProcessorSuite) TestLegacyCreateAndAdjustByDelta() {
	created, err := s.processor.LegacyCreatePayment(s.GetContext(), &dto.LegacyCreateCartPaymentRequest{
		IdempotencyKey: "legacy-create-1",
		Amount:         decimal.NewFromInt(100),
		Currency:       "usd",
		PaymentCountry: "US",
		LegacyPayment: types.LegacyPayment{
			ConsumerID:   s.payer.LegacyConsumerID,
			CountryID:    1,
			StripeCardID: *s.method.LegacyCardID,
		},
	})
	s.NoError(err)
	s.Require().NotNil(created.LegacyPayment)

	charge, err := s.GetStores().LegacyChargeRepo.GetConsumerChargeByCartPaymentID(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(s.payer.LegacyConsumerID, charge.ConsumerID)

	// The legacy adjust amount is a delta on the current total
	resp, err := s.processor.UpdatePaymentForLegacyCharge(s.GetContext(), charge.ID, &dto.UpdateLegacyChargeRequest{
		IdempotencyKey: "legacy-adjust-1",
		AmountDelta:    decimal.NewFromInt(-25),
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(75)))
}

func (s *CartPaymentProcessorSuite) TestLegacyAdjustBelowZeroRejected() {
	created, err := s.processor.LegacyCreatePayment(s.GetContext(), &dto.LegacyCreateCartPaymentRequest{
		IdempotencyKey: "legacy-create-1",
		Amount:         decimal.NewFromInt(100),
		Currency:       "usd",
		PaymentCountry: "US",
		LegacyPayment: types.LegacyPayment{
			ConsumerID:   s.payer.LegacyConsumerID,
			CountryID:    1,
			StripeCardID: *s.method.LegacyCardID,
		},
	})
	s.NoError(err)

	charge, err := s.GetStores().LegacyChargeRepo.GetConsumerChargeByCartPaymentID(s.GetContext(), created.ID)
	s.NoError(err)

	_, err = s.processor.UpdatePaymentForLegacyCharge(s.GetContext(), charge.ID, &dto.UpdateLegacyChargeRequest{
		IdempotencyKey: "legacy-adjust-1",
		AmountDelta:    decimal.NewFromInt(-150),
	})
	s.Error(err)
	s.True(ierr.IsCartPaymentAmountInvalid(err))
	s.Empty(s.GetGateway().RefundCalls)
}

func (s *CartPaymentProcessorSuite) TestLegacyAdjustUnknownCharge() {
	_, err := s.processor.UpdatePaymentForLegacyCharge(s.GetContext(), 9999, &dto.UpdateLegacyChargeRequest{
		IdempotencyKey: "legacy-adjust-1",
		AmountDelta:    decimal.NewFromInt(10),
	})
	s.Error(err)
	s.True(ierr.IsCartPaymentNotFound(err))
}

func (s *CartPaymentProcessorSuite) TestLegacyCancel() {
	created, err := s.processor.LegacyCreatePayment(s.GetContext(), &dto.LegacyCreateCartPaymentRequest{
		IdempotencyKey: "legacy-create-1",
		Amount:         decimal.NewFromInt(100),
		Currency:       "usd",
		PaymentCountry: "US",
		LegacyPayment: types.LegacyPayment{
			ConsumerID:   s.payer.LegacyConsumerID,
			CountryID:    1,
			StripeCardID: *s.method.LegacyCardID,
		},
	})
	s.NoError(err)

	charge, err := s.GetStores().LegacyChargeRepo.GetConsumerChargeByCartPaymentID(s.GetContext(), created.ID)
	s.NoError(err)

	resp, err := s.processor.CancelPaymentForLegacyCharge(s.GetContext(), charge.ID)
	s.NoError(err)
	s.True(resp.Amount.IsZero())
	s.NotNil(resp.DeletedAt)
}

func (s *CartPaymentProcessorSuite) TestCapturePaymentIntent() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, true))
	s.NoError(err)

	intent, err := s.GetStores().CartPaymentRepo.GetPaymentIntent(s.GetContext(), created.PaymentIntents[0].ID)
	s.NoError(err)

	s.NoError(s.processor.CapturePaymentIntent(s.GetContext(), intent))

	captured, err := s.GetStores().CartPaymentRepo.GetPaymentIntent(s.GetContext(), intent.ID)
	s.NoError(err)
	s.Equal(types.PaymentIntentStatusSucceeded, captured.IntentStatus)
	s.True(captured.AmountReceived.Equal(decimal.NewFromInt(100)))
	s.True(captured.AmountCapturable.IsZero())
	s.NotNil(captured.CapturedAt)

	s.Require().Len(s.GetGateway().CaptureCalls, 1)
	s.Contains(s.GetPublisher().EventNames(), types.WebhookEventPaymentIntentCaptured)
}

func (s *CartPaymentProcessorSuite) TestCaptureRejectsWrongState() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, false))
	s.NoError(err)

	intent, err := s.GetStores().CartPaymentRepo.GetPaymentIntent(s.GetContext(), created.PaymentIntents[0].ID)
	s.NoError(err)

	err = s.processor.CapturePaymentIntent(s.GetContext(), intent)
	s.Error(err)
	s.Empty(s.GetGateway().CaptureCalls)
}

func (s *CartPaymentProcessorSuite) TestCaptureAfterAdjustDownCapturesLoweredAmount() {
	created, err := s.processor.CreatePayment(s.GetContext(), s.createRequest(100, true))
	s.NoError(err)

	_, err = s.processor.UpdatePayment(s.GetContext(), created.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey: "adjust-key-1",
		PayerID:        s.payer.ID,
		Amount:         decimal.NewFromInt(80),
	})
	s.NoError(err)

	intent, err := s.GetStores().CartPaymentRepo.GetPaymentIntent(s.GetContext(), created.PaymentIntents[0].ID)
	s.NoError(err)
	s.NoError(s.processor.CapturePaymentIntent(s.GetContext(), intent))

	s.Require().Len(s.GetGateway().CaptureCalls, 1)
	s.True(s.GetGateway().CaptureCalls[0].AmountToCapture.Equal(decimal.NewFromInt(80)))
}

func (s *CartPaymentProcessorSuite) TestGetLegacyClientDescription() {
	s.Nil(s.processor.GetLegacyClientDescription(nil))

	short := "a short description"
	s.Equal(short, *s.processor.GetLegacyClientDescription(&short))

	long := strings.Repeat("x", 1500)
	truncated := s.processor.GetLegacyClientDescription(&long)
	s.Require().NotNil(truncated)
	s.Len(*truncated, s.GetConfig().Payment.DescriptionMaxLen)
}

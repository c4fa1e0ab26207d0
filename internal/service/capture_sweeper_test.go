package service

import (
	"testing"
	"time"

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

type CaptureSweeperSuite struct {
	testutil.BaseServiceTestSuite
	processor CartPaymentProcessor
	sweeper   CaptureSweeper
	payer     *payer.Payer
	method    *paymentmethod.PaymentMethod
}

func TestCaptureSweeperSuite(t *testing.T) {
	suite.Run(t, new(CaptureSweeperSuite))
}

func (s *CaptureSweeperSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		DB:                s.GetDB(),
		Cache:             s.GetCache(),
		CartPaymentRepo:   s.GetStores().CartPaymentRepo,
		LegacyChargeRepo:  s.GetStores().LegacyChargeRepo,
		PayerRepo:         s.GetStores().PayerRepo,
		PaymentMethodRepo: s.GetStores().PaymentMethodRepo,
		Gateway:           s.GetGateway(),
		EventPublisher:    s.GetPublisher(),
	}
	s.processor = NewCartPaymentProcessor(params)
	s.sweeper = NewCaptureSweeper(params, s.processor)

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

// createDueIntent creates a manual-capture payment and backdates its
// capture_after deadline so the next sweep picks it up.
func (s *CaptureSweeperSuite) createDueIntent(key string, amount int64) *cartpayment.PaymentIntent {
	resp, err := s.processor.CreatePayment(s.GetContext(), &dto.CreateCartPaymentRequest{
		IdempotencyKey:  key,
		PayerID:         s.payer.ID,
		PaymentMethodID: s.method.ID,
		Amount:          decimal.NewFromInt(amount),
		Currency:        "usd",
		Country:         "US",
		DelayCapture:    lo.ToPtr(true),
	})
	s.Require().NoError(err)
	s.Require().Len(resp.PaymentIntents, 1)

	intent, err := s.GetStores().CartPaymentRepo.GetPaymentIntent(s.GetContext(), resp.PaymentIntents[0].ID)
	s.Require().NoError(err)
	intent.CaptureAfter = lo.ToPtr(time.Now().UTC().Add(-time.Hour))
	s.Require().NoError(s.GetStores().CartPaymentRepo.UpdatePaymentIntent(s.GetContext(), intent))
	return intent
}

func (s *CaptureSweeperSuite) TestSweepCapturesDueIntents() {
	first := s.createDueIntent("sweep-key-1", 100)
	second := s.createDueIntent("sweep-key-2", 50)

	captured, err := s.sweeper.SweepOnce(s.GetContext())
	s.NoError(err)
	s.Equal(2, captured)

	for _, id := range []string{first.ID, second.ID} {
		intent, err := s.GetStores().CartPaymentRepo.GetPaymentIntent(s.GetContext(), id)
		s.NoError(err)
		s.Equal(types.PaymentIntentStatusSucceeded, intent.IntentStatus)
		s.True(intent.AmountCapturable.IsZero())
	}
}

func (s *CaptureSweeperSuite) TestSweepIgnoresIntentsNotYetDue() {
	resp, err := s.processor.CreatePayment(s.GetContext(), &dto.CreateCartPaymentRequest{
		IdempotencyKey:  "sweep-key-1",
		PayerID:         s.payer.ID,
		PaymentMethodID: s.method.ID,
		Amount:          decimal.NewFromInt(100),
		Currency:        "usd",
		Country:         "US",
		DelayCapture:    lo.ToPtr(true),
	})
	s.NoError(err)
	s.Require().Len(resp.PaymentIntents, 1)

	captured, err := s.sweeper.SweepOnce(s.GetContext())
	s.NoError(err)
	s.Zero(captured)
	s.Empty(s.GetGateway().CaptureCalls)
}

func (s *CaptureSweeperSuite) TestSweepSkipsStaleIntents() {
	intent := s.createDueIntent("sweep-key-1", 100)
	intent.CreatedAt = time.Now().UTC().Add(-s.GetConfig().Payment.CaptureSweepCutoff - 24*time.Hour)
	s.NoError(s.GetStores().CartPaymentRepo.UpdatePaymentIntent(s.GetContext(), intent))

	captured, err := s.sweeper.SweepOnce(s.GetContext())
	s.NoError(err)
	s.Zero(captured)
	s.Empty(s.GetGateway().CaptureCalls)
}

func (s *CaptureSweeperSuite) TestSweepSkipsIntentsNeverSubmitted() {
	intent := s.createDueIntent("sweep-key-1", 100)

	pgps, err := s.GetStores().CartPaymentRepo.ListPgpPaymentIntents(s.GetContext(), intent.ID)
	s.NoError(err)
	s.Require().Len(pgps, 1)
	pgps[0].ResourceID = nil
	s.NoError(s.GetStores().CartPaymentRepo.UpdatePgpPaymentIntent(s.GetContext(), pgps[0]))

	captured, err := s.sweeper.SweepOnce(s.GetContext())
	s.NoError(err)
	s.Zero(captured)
	s.Empty(s.GetGateway().CaptureCalls)
}

func (s *CaptureSweeperSuite) TestSweepSkipsDivergedProviderStatus() {
	intent := s.createDueIntent("sweep-key-1", 100)

	pgps, err := s.GetStores().CartPaymentRepo.ListPgpPaymentIntents(s.GetContext(), intent.ID)
	s.NoError(err)
	s.Require().Len(pgps, 1)
	pgps[0].IntentStatus = types.PaymentIntentStatusSucceeded
	s.NoError(s.GetStores().CartPaymentRepo.UpdatePgpPaymentIntent(s.GetContext(), pgps[0]))

	captured, err := s.sweeper.SweepOnce(s.GetContext())
	s.NoError(err)
	s.Zero(captured)
	s.Empty(s.GetGateway().CaptureCalls)
}

func (s *CaptureSweeperSuite) TestSweepIsolatesPerIntentFailures() {
	s.createDueIntent("sweep-key-1", 100)
	s.createDueIntent("sweep-key-2", 50)

	// The first capture attempt fails, the sweep must still finish the rest
	s.GetGateway().CaptureErr = ierr.NewError("provider timeout").
		Mark(ierr.ErrProviderUnavailable)

	captured, err := s.sweeper.SweepOnce(s.GetContext())
	s.NoError(err)
	s.Equal(1, captured)
	s.Len(s.GetGateway().CaptureCalls, 2)

	// The failed intent stays due and is captured on the next pass
	captured, err = s.sweeper.SweepOnce(s.GetContext())
	s.NoError(err)
	s.Equal(1, captured)
}

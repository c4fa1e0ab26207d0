package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/cartpay/cartpay/internal/api/dto"
	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	"github.com/cartpay/cartpay/internal/domain/legacycharge"
	"github.com/cartpay/cartpay/internal/domain/payer"
	"github.com/cartpay/cartpay/internal/domain/paymentmethod"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/gateway"
	"github.com/cartpay/cartpay/internal/idempotency"
	"github.com/cartpay/cartpay/internal/types"
)

// CartPaymentProcessor orchestrates the full payment lifecycle: create,
// adjust, cancel, capture. Every mutator is idempotent under its caller's
// idempotency key. Provider calls happen between transactions, never inside
// one.
type CartPaymentProcessor interface {
	CreatePayment(ctx context.Context, req *dto.CreateCartPaymentRequest) (*dto.CartPaymentResponse, error)
	LegacyCreatePayment(ctx context.Context, req *dto.LegacyCreateCartPaymentRequest) (*dto.CartPaymentResponse, error)
	GetCartPayment(ctx context.Context, id string) (*dto.CartPaymentResponse, error)
	UpdatePayment(ctx context.Context, id string, req *dto.UpdateCartPaymentRequest) (*dto.CartPaymentResponse, error)
	CancelPayment(ctx context.Context, id string) (*dto.CartPaymentResponse, error)
	UpdatePaymentForLegacyCharge(ctx context.Context, chargeID int64, req *dto.UpdateLegacyChargeRequest) (*dto.CartPaymentResponse, error)
	CancelPaymentForLegacyCharge(ctx context.Context, chargeID int64) (*dto.CartPaymentResponse, error)

	// CapturePaymentIntent captures a single authorized intent; driven by
	// the deferred-capture sweeper
	CapturePaymentIntent(ctx context.Context, intent *cartpayment.PaymentIntent) error

	// GetLegacyClientDescription truncates a client description for the
	// legacy charge projection
	GetLegacyClientDescription(description *string) *string
}

type cartPaymentProcessor struct {
	ServiceParams
	cartPaymentSvc   CartPaymentService
	legacySvc        LegacyPaymentService
	payerSvc         PayerService
	paymentMethodSvc PaymentMethodService
	keyGen           *idempotency.Generator
}

func NewCartPaymentProcessor(params ServiceParams) CartPaymentProcessor {
	return &cartPaymentProcessor{
		ServiceParams:    params,
		cartPaymentSvc:   NewCartPaymentService(params),
		legacySvc:        NewLegacyPaymentService(params),
		payerSvc:         NewPayerService(params),
		paymentMethodSvc: NewPaymentMethodService(params),
		keyGen:           idempotency.NewGenerator(),
	}
}

// CreatePayment drives a new cart payment through INIT rows, provider
// submission, and outcome application. A replay with a known idempotency key
// returns the prior cart payment no matter how far the prior attempt got.
func (p *cartPaymentProcessor) CreatePayment(ctx context.Context, req *dto.CreateCartPaymentRequest) (*dto.CartPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Idempotency probe across prior cart payments by this payer
	if resp, err := p.replayExistingPayment(ctx, req.PayerID, req.IdempotencyKey); resp != nil || err != nil {
		return resp, err
	}

	pay, err := p.payerSvc.GetPayer(ctx, req.PayerID)
	if err != nil {
		return nil, err
	}
	pm, err := p.paymentMethodSvc.GetPaymentMethodForPayer(ctx, req.PaymentMethodID, req.PayerID)
	if err != nil {
		return nil, err
	}

	cp := req.ToCartPayment(ctx)
	if req.DelayCapture == nil {
		cp.DelayCapture = p.Config.Payment.DelayCaptureDefault
	}

	return p.createAndSubmit(ctx, cp, req.IdempotencyKey, pay, pm)
}

// LegacyCreatePayment is the create flow for older clients addressing payers
// by consumer id and cards by legacy card id
func (p *cartPaymentProcessor) LegacyCreatePayment(ctx context.Context, req *dto.LegacyCreateCartPaymentRequest) (*dto.CartPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pay, err := p.payerSvc.GetPayerByLegacyConsumerID(ctx, req.LegacyPayment.ConsumerID)
	if err != nil {
		return nil, err
	}

	if resp, err := p.replayExistingPayment(ctx, pay.ID, req.IdempotencyKey); resp != nil || err != nil {
		return resp, err
	}

	if req.LegacyPayment.StripeCardID == 0 {
		return nil, ierr.NewError("missing stripe card id").
			WithHint("Legacy payment requires a card id").
			Mark(ierr.ErrPaymentMethodNotFound)
	}
	pm, err := p.paymentMethodSvc.GetPaymentMethodByLegacyCardID(ctx, req.LegacyPayment.StripeCardID, pay.ID)
	if err != nil {
		return nil, err
	}

	cp := &cartpayment.CartPayment{
		ID:                        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CART_PAYMENT),
		PayerID:                   pay.ID,
		PaymentMethodID:           pm.ID,
		Amount:                    req.Amount,
		Currency:                  req.Currency,
		Country:                   req.PaymentCountry,
		ClientDescription:         req.ClientDescription,
		PayerStatementDescription: req.PayerStatementDescription,
		LegacyPayment:             lo.ToPtr(req.LegacyPayment),
		Metadata:                  req.Metadata,
		BaseModel:                 types.GetDefaultBaseModel(ctx),
	}
	if req.CorrelationIDs != nil {
		cp.CorrelationIDs = *req.CorrelationIDs
	}
	if req.DelayCapture != nil {
		cp.DelayCapture = *req.DelayCapture
	} else {
		cp.DelayCapture = p.Config.Payment.DelayCaptureDefault
	}

	return p.createAndSubmit(ctx, cp, req.IdempotencyKey, pay, pm)
}

// replayExistingPayment returns the prior cart payment when an intent already
// carries the payer's idempotency key. An INIT intent means the prior attempt
// never finished the provider step; it is resumed here.
func (p *cartPaymentProcessor) replayExistingPayment(ctx context.Context, payerID, key string) (*dto.CartPaymentResponse, error) {
	intent, err := p.CartPaymentRepo.GetPaymentIntentByPayerAndKey(ctx, payerID, key)
	if err != nil || intent == nil {
		return nil, err
	}

	cp, err := p.CartPaymentRepo.GetCartPaymentByID(ctx, intent.CartPaymentID)
	if err != nil {
		return nil, err
	}

	if intent.IntentStatus == types.PaymentIntentStatusInit {
		if err := p.finishProviderSubmission(ctx, cp, intent); err != nil {
			return nil, err
		}
	}

	p.Logger.Infow("returning existing cart payment for idempotency key",
		"cart_payment_id", cp.ID,
		"payer_id", payerID,
	)
	return p.response(ctx, cp)
}

// createAndSubmit persists the INIT rows in one transaction, then submits to
// the provider outside it and applies the outcome
func (p *cartPaymentProcessor) createAndSubmit(ctx context.Context, cp *cartpayment.CartPayment, key string, pay *payer.Payer, pm *paymentmethod.PaymentMethod) (*dto.CartPaymentResponse, error) {
	var (
		intent       *cartpayment.PaymentIntent
		pgp          *cartpayment.PgpPaymentIntent
		stripeCharge *legacycharge.StripeCharge
	)

	consumerID := pay.LegacyConsumerID
	countryID := 0
	if cp.LegacyPayment != nil {
		consumerID = cp.LegacyPayment.ConsumerID
		countryID = cp.LegacyPayment.CountryID
	}

	err := p.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := p.CartPaymentRepo.CreateCartPayment(ctx, cp); err != nil {
			return err
		}

		consumerCharge, err := p.legacySvc.CreateConsumerCharge(ctx, cp, key, consumerID, countryID)
		if err != nil {
			return err
		}

		intent, pgp, err = p.cartPaymentSvc.CreateIntentPair(ctx, cp, key, cp.Amount, consumerCharge.ID)
		if err != nil {
			return err
		}

		stripeCharge, err = p.legacySvc.CreateStripeCharge(ctx, consumerCharge, key, cp.Amount, pm.LegacyCardID, p.GetLegacyClientDescription(cp.ClientDescription))
		return err
	})
	if err != nil {
		// A concurrent create with the same key won the race; return its
		// cart payment
		if ierr.IsAlreadyExists(err) {
			if resp, replayErr := p.replayExistingPayment(ctx, cp.PayerID, key); resp != nil || replayErr != nil {
				return resp, replayErr
			}
		}
		return nil, err
	}

	provider, err := p.cartPaymentSvc.SubmitPaymentToProvider(ctx, cp, intent, pay, pm)
	if err != nil {
		p.failSubmission(ctx, intent, pgp, stripeCharge, err)
		return nil, err
	}

	if err := p.applySubmission(ctx, intent, pgp, stripeCharge, provider); err != nil {
		return nil, err
	}

	p.EventPublisher.Publish(ctx, types.WebhookEventCartPaymentCreated, dto.NewCartPaymentResponse(cp, []*cartpayment.PaymentIntent{intent}))
	return p.response(ctx, cp)
}

// finishProviderSubmission resumes an intent stuck in INIT: the prior attempt
// persisted rows but never completed the provider call
func (p *cartPaymentProcessor) finishProviderSubmission(ctx context.Context, cp *cartpayment.CartPayment, intent *cartpayment.PaymentIntent) error {
	pgp, err := p.pgpForIntent(ctx, intent)
	if err != nil {
		return err
	}
	stripeCharge, err := p.legacySvc.GetStripeChargeForIntent(ctx, intent)
	if err != nil {
		return err
	}
	pay, err := p.payerSvc.GetPayer(ctx, cp.PayerID)
	if err != nil {
		return err
	}
	pm, err := p.paymentMethodSvc.GetPaymentMethodForPayer(ctx, cp.PaymentMethodID, cp.PayerID)
	if err != nil {
		return err
	}

	provider, err := p.cartPaymentSvc.SubmitPaymentToProvider(ctx, cp, intent, pay, pm)
	if err != nil {
		p.failSubmission(ctx, intent, pgp, stripeCharge, err)
		return err
	}
	return p.applySubmission(ctx, intent, pgp, stripeCharge, provider)
}

func (p *cartPaymentProcessor) applySubmission(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, stripeCharge *legacycharge.StripeCharge, provider *gateway.ProviderIntent) error {
	if err := p.cartPaymentSvc.UpdateStateAfterProviderSubmission(ctx, intent, pgp, provider); err != nil {
		return err
	}
	return p.legacySvc.UpdateStateAfterProviderSubmission(ctx, stripeCharge, provider)
}

// failSubmission stamps FAILED onto the intent, its mirror, and the legacy
// charge. No intent stays in INIT after its request returns.
func (p *cartPaymentProcessor) failSubmission(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, stripeCharge *legacycharge.StripeCharge, provErr error) {
	if err := p.cartPaymentSvc.UpdateStateAfterProviderError(ctx, intent, pgp, provErr); err != nil {
		p.Logger.Errorw("failed to stamp provider error on intent",
			"error", err,
			"payment_intent_id", intent.ID,
		)
	}
	if err := p.legacySvc.UpdateStateAfterProviderError(ctx, stripeCharge, provErr); err != nil {
		p.Logger.Errorw("failed to stamp provider error on legacy charge",
			"error", err,
			"stripe_charge_id", stripeCharge.ID,
		)
	}
	p.EventPublisher.Publish(ctx, types.WebhookEventPaymentIntentFailed, dto.NewPaymentIntentResponse(intent))
}

func (p *cartPaymentProcessor) GetCartPayment(ctx context.Context, id string) (*dto.CartPaymentResponse, error) {
	cp, _, err := p.cartPaymentSvc.GetCartPaymentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.response(ctx, cp)
}

// UpdatePayment adjusts the cart payment to a new total. The direction of the
// delta picks the path: adjust-up re-authorizes or replaces the intent,
// adjust-down lowers an uncaptured intent in place or refunds a captured one.
func (p *cartPaymentProcessor) UpdatePayment(ctx context.Context, id string, req *dto.UpdateCartPaymentRequest) (*dto.CartPaymentResponse, error) {
	if req.Amount.IsNegative() {
		return nil, ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrCartPaymentAmountInvalid)
	}

	cp, err := p.CartPaymentRepo.GetCartPaymentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	delta := req.Amount.Sub(cp.Amount)
	if delta.IsZero() {
		return p.response(ctx, cp)
	}

	if req.ClientDescription != nil {
		cp.ClientDescription = req.ClientDescription
	}
	if req.SplitPayment != nil {
		cp.SplitPayment = req.SplitPayment
	}

	if delta.IsPositive() {
		err = p.updatePaymentWithHigherAmount(ctx, cp, req.Amount, req.IdempotencyKey)
	} else {
		err = p.updatePaymentWithLowerAmount(ctx, cp, req.Amount, req.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}

	resp, err := p.response(ctx, cp)
	if err != nil {
		return nil, err
	}
	p.EventPublisher.Publish(ctx, types.WebhookEventCartPaymentUpdated, resp)
	return resp, nil
}

// updatePaymentWithHigherAmount raises the total. An uncaptured intent whose
// authorized limit covers the new total is adjusted in place; otherwise a
// fresh intent is charged for the full new amount and the prior intent is
// refunded in full.
func (p *cartPaymentProcessor) updatePaymentWithHigherAmount(ctx context.Context, cp *cartpayment.CartPayment, newAmount decimal.Decimal, key string) error {
	latest, err := p.latestActiveIntent(ctx, cp.ID)
	if err != nil {
		return err
	}

	// Idempotent resubmit: an intent already carries this key
	existing, err := p.CartPaymentRepo.GetPaymentIntentForIdempotencyKey(ctx, cp.ID, key)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.IntentStatus == types.PaymentIntentStatusInit {
			return p.finishProviderSubmission(ctx, cp, existing)
		}
		return nil
	}

	pgp, err := p.pgpForIntent(ctx, latest)
	if err != nil {
		return err
	}

	if latest.IntentStatus == types.PaymentIntentStatusRequiresCapture && newAmount.LessThanOrEqual(pgp.Amount) {
		return p.adjustIntentInPlace(ctx, cp, latest, newAmount, key)
	}

	return p.replaceIntentForNewAmount(ctx, cp, latest, pgp, newAmount, key)
}

// adjustIntentInPlace rewrites the uncaptured intent's amount within the
// authorized limit. No provider call is needed before capture.
func (p *cartPaymentProcessor) adjustIntentInPlace(ctx context.Context, cp *cartpayment.CartPayment, intent *cartpayment.PaymentIntent, newAmount decimal.Decimal, key string) error {
	stripeCharge, err := p.legacySvc.GetStripeChargeForIntent(ctx, intent)
	if err != nil {
		return err
	}

	return p.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := p.lockCartPayment(ctx, cp.ID); err != nil {
			return err
		}

		adj := &cartpayment.AdjustmentHistory{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ADJUSTMENT),
			PaymentIntentID: intent.ID,
			IdempotencyKey:  key,
			AmountOriginal:  intent.Amount,
			AmountDelta:     newAmount.Sub(intent.Amount),
			Amount:          newAmount,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		if err := p.CartPaymentRepo.CreateAdjustmentHistory(ctx, adj); err != nil {
			return err
		}

		intent.Amount = newAmount
		intent.AmountCapturable = newAmount
		if err := p.CartPaymentRepo.UpdatePaymentIntent(ctx, intent); err != nil {
			return err
		}

		if err := p.legacySvc.UpdateChargeAmount(ctx, stripeCharge, newAmount); err != nil {
			return err
		}

		cp.Amount = newAmount
		return p.CartPaymentRepo.UpdateCartPayment(ctx, cp)
	})
}

// replaceIntentForNewAmount charges a fresh intent for the full new amount,
// then fully refunds the prior one. The net of the two equals the delta.
func (p *cartPaymentProcessor) replaceIntentForNewAmount(ctx context.Context, cp *cartpayment.CartPayment, prior *cartpayment.PaymentIntent, priorPgp *cartpayment.PgpPaymentIntent, newAmount decimal.Decimal, key string) error {
	pay, err := p.payerSvc.GetPayer(ctx, cp.PayerID)
	if err != nil {
		return err
	}
	pm, err := p.paymentMethodSvc.GetPaymentMethodForPayer(ctx, cp.PaymentMethodID, cp.PayerID)
	if err != nil {
		return err
	}
	consumerCharge, err := p.legacySvc.GetConsumerCharge(ctx, prior.LegacyConsumerChargeID)
	if err != nil {
		return err
	}

	var (
		intent       *cartpayment.PaymentIntent
		pgp          *cartpayment.PgpPaymentIntent
		stripeCharge *legacycharge.StripeCharge
	)
	err = p.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := p.lockCartPayment(ctx, cp.ID); err != nil {
			return err
		}
		intent, pgp, err = p.cartPaymentSvc.CreateIntentPair(ctx, cp, key, newAmount, consumerCharge.ID)
		if err != nil {
			return err
		}
		stripeCharge, err = p.legacySvc.CreateStripeCharge(ctx, consumerCharge, key, newAmount, pm.LegacyCardID, p.GetLegacyClientDescription(cp.ClientDescription))
		return err
	})
	if err != nil {
		return err
	}

	provider, err := p.cartPaymentSvc.SubmitPaymentToProvider(ctx, cp, intent, pay, pm)
	if err != nil {
		p.failSubmission(ctx, intent, pgp, stripeCharge, err)
		return err
	}
	if err := p.applySubmission(ctx, intent, pgp, stripeCharge, provider); err != nil {
		return err
	}

	// Fully unwind the prior intent now that the replacement is live
	if err := p.unwindIntent(ctx, prior, priorPgp); err != nil {
		return err
	}

	return p.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := p.lockCartPayment(ctx, cp.ID); err != nil {
			return err
		}
		cp.Amount = newAmount
		return p.CartPaymentRepo.UpdateCartPayment(ctx, cp)
	})
}

// unwindIntent cancels an uncaptured intent or fully refunds a captured one.
// The intent's phase decides the action.
func (p *cartPaymentProcessor) unwindIntent(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent) error {
	phase, err := p.intentPhase(ctx, intent, pgp)
	if err != nil {
		return err
	}

	switch phase {
	case types.IntentPhaseAuthorizedAwaitingCapture:
		return p.cancelIntent(ctx, intent, pgp)
	case types.IntentPhaseCaptured, types.IntentPhasePartiallyRefunded:
		key := p.keyGen.GenerateKey(idempotency.ScopeRefund, map[string]interface{}{
			"payment_intent_id": intent.ID,
			"kind":              "full_unwind",
		})
		return p.refundIntent(ctx, intent, pgp, intent.Amount, key)
	default:
		// New, in-flight, fully refunded, cancelled and failed intents hold
		// no captured money
		return nil
	}
}

// updatePaymentWithLowerAmount reduces the total. Before capture the intent
// amount is lowered directly; after capture the difference is refunded at the
// provider. The intent's phase decides the path.
func (p *cartPaymentProcessor) updatePaymentWithLowerAmount(ctx context.Context, cp *cartpayment.CartPayment, newAmount decimal.Decimal, key string) error {
	latest, err := p.latestActiveIntent(ctx, cp.ID)
	if err != nil {
		return err
	}
	pgp, err := p.pgpForIntent(ctx, latest)
	if err != nil {
		return err
	}
	phase, err := p.intentPhase(ctx, latest, pgp)
	if err != nil {
		return err
	}

	switch phase {
	case types.IntentPhaseAuthorizedAwaitingCapture:
		// Idempotent resubmit detected via the adjustment row for this key
		adj, err := p.CartPaymentRepo.GetAdjustmentHistoryForIdempotencyKey(ctx, latest.ID, key)
		if err != nil {
			return err
		}
		if adj != nil {
			return nil
		}
		return p.adjustIntentInPlace(ctx, cp, latest, newAmount, key)

	case types.IntentPhaseCaptured, types.IntentPhasePartiallyRefunded:
		if err := p.refundIntent(ctx, latest, pgp, latest.Amount.Sub(newAmount), key); err != nil {
			return err
		}
		return p.DB.WithTx(ctx, func(ctx context.Context) error {
			if err := p.lockCartPayment(ctx, cp.ID); err != nil {
				return err
			}
			cp.Amount = newAmount
			return p.CartPaymentRepo.UpdateCartPayment(ctx, cp)
		})

	default:
		return ierr.NewError("cannot lower amount in current state").
			WithHintf("Payment intent is %s", phase).
			WithReportableDetails(map[string]any{
				"payment_intent_id": latest.ID,
				"intent_phase":      phase,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
}

// refundIntent issues a provider refund and applies the accounting: the
// intent's domain amount drops, the legacy charge accumulates
// amount_refunded, and the provider mirror keeps its historical charged
// amounts untouched.
// Idempotent: a succeeded refund row for the key returns immediately; a
// processing row re-drives the provider call.
func (p *cartPaymentProcessor) refundIntent(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, amount decimal.Decimal, key string) error {
	refund, err := p.CartPaymentRepo.GetRefundForIdempotencyKey(ctx, intent.ID, key)
	if err != nil {
		return err
	}
	if refund != nil && refund.RefundStatus == types.RefundStatusSucceeded {
		return nil
	}

	var pgpRefund *cartpayment.PgpRefund
	if refund == nil {
		refund = &cartpayment.Refund{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND),
			PaymentIntentID: intent.ID,
			IdempotencyKey:  key,
			Amount:          amount,
			RefundStatus:    types.RefundStatusProcessing,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		pgpRefund = &cartpayment.PgpRefund{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PGP_REFUND),
			RefundID:        refund.ID,
			PaymentIntentID: intent.ID,
			Amount:          amount,
			RefundStatus:    types.RefundStatusProcessing,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		err = p.DB.WithTx(ctx, func(ctx context.Context) error {
			if err := p.CartPaymentRepo.CreateRefund(ctx, refund); err != nil {
				return err
			}
			return p.CartPaymentRepo.CreatePgpRefund(ctx, pgpRefund)
		})
		if err != nil {
			return err
		}
	} else {
		// Re-drive a processing refund from a prior attempt
		pgpRefund, err = p.CartPaymentRepo.GetPgpRefundByRefundID(ctx, refund.ID)
		if err != nil {
			return err
		}
	}

	if pgp.ResourceID == nil {
		return ierr.NewError("intent has no provider resource id").
			WithHint("The payment cannot be refunded before provider submission").
			Mark(ierr.ErrInvalidOperation)
	}

	provRefund, err := p.Gateway.RefundCharge(ctx, &gateway.RefundRequest{
		IntentResourceID: *pgp.ResourceID,
		Amount:           refund.Amount,
		IdempotencyKey:   key,
	})
	if err != nil {
		// Refund row stays processing; a retry re-drives it
		return err
	}

	stripeCharge, err := p.legacySvc.GetStripeChargeForIntent(ctx, intent)
	if err != nil {
		return err
	}

	return p.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := p.lockCartPayment(ctx, intent.CartPaymentID); err != nil {
			return err
		}

		refund.RefundStatus = types.RefundStatusSucceeded
		if err := p.CartPaymentRepo.UpdateRefund(ctx, refund); err != nil {
			return err
		}

		if pgpRefund != nil {
			pgpRefund.RefundStatus = provRefund.Status
			if provRefund.Status == types.RefundStatusProcessing {
				pgpRefund.RefundStatus = types.RefundStatusSucceeded
			}
			if provRefund.ResourceID != "" {
				pgpRefund.ResourceID = lo.ToPtr(provRefund.ResourceID)
			}
			if err := p.CartPaymentRepo.UpdatePgpRefund(ctx, pgpRefund); err != nil {
				return err
			}
		}

		// The pgp mirror keeps the provider's charged amounts; only the
		// domain intent drops
		intent.Amount = intent.Amount.Sub(refund.Amount)
		if err := p.CartPaymentRepo.UpdatePaymentIntent(ctx, intent); err != nil {
			return err
		}

		return p.legacySvc.AddRefundToCharge(ctx, stripeCharge, refund.Amount)
	})
}

// cancelIntent cancels an uncaptured intent at the provider and zeroes it
func (p *cartPaymentProcessor) cancelIntent(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent) error {
	if pgp.ResourceID != nil {
		_, err := p.Gateway.CancelPaymentIntent(ctx, &gateway.CancelIntentRequest{
			ResourceID: *pgp.ResourceID,
			Reason:     "requested_by_customer",
		})
		if err != nil {
			return err
		}
	}

	stripeCharge, err := p.legacySvc.GetStripeChargeForIntent(ctx, intent)
	if err != nil {
		return err
	}

	if err := p.cartPaymentSvc.UpdateStateAfterCancel(ctx, intent, pgp); err != nil {
		return err
	}
	return p.legacySvc.MarkChargeCancelled(ctx, stripeCharge)
}

// CancelPayment cancels every live intent under the cart payment: uncaptured
// intents are cancelled at the provider, captured ones fully refunded.
func (p *cartPaymentProcessor) CancelPayment(ctx context.Context, id string) (*dto.CartPaymentResponse, error) {
	cp, err := p.CartPaymentRepo.GetCartPaymentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	intents, err := p.CartPaymentRepo.ListPaymentIntents(ctx, cp.ID)
	if err != nil {
		return nil, err
	}

	for _, intent := range intents {
		pgp, err := p.pgpForIntent(ctx, intent)
		if err != nil {
			return nil, err
		}
		if err := p.unwindIntent(ctx, intent, pgp); err != nil {
			return nil, err
		}
	}

	err = p.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := p.lockCartPayment(ctx, cp.ID); err != nil {
			return err
		}
		now := types.GetDefaultBaseModel(ctx).UpdatedAt
		cp.Amount = decimal.Zero
		cp.DeletedAt = &now
		return p.CartPaymentRepo.UpdateCartPayment(ctx, cp)
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.response(ctx, cp)
	if err != nil {
		return nil, err
	}
	p.EventPublisher.Publish(ctx, types.WebhookEventCartPaymentCancelled, resp)
	return resp, nil
}

// UpdatePaymentForLegacyCharge adjusts a cart payment addressed by its legacy
// consumer charge id. The request amount is a delta on the current total.
func (p *cartPaymentProcessor) UpdatePaymentForLegacyCharge(ctx context.Context, chargeID int64, req *dto.UpdateLegacyChargeRequest) (*dto.CartPaymentResponse, error) {
	consumerCharge, err := p.legacySvc.GetConsumerCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	cp, err := p.CartPaymentRepo.GetCartPaymentByID(ctx, consumerCharge.CartPaymentID)
	if err != nil {
		return nil, err
	}

	newAmount := cp.Amount.Add(req.AmountDelta)
	if newAmount.IsNegative() {
		return nil, ierr.NewError("invalid amount").
			WithHint("Adjustment would drive the amount below zero").
			WithReportableDetails(map[string]any{
				"current_amount": cp.Amount.String(),
				"amount_delta":   req.AmountDelta.String(),
			}).
			Mark(ierr.ErrCartPaymentAmountInvalid)
	}

	if len(req.AdditionalPaymentInfo) > 0 && cp.LegacyPayment != nil {
		if cp.LegacyPayment.AdditionalPaymentInfo == nil {
			cp.LegacyPayment.AdditionalPaymentInfo = types.Metadata{}
		}
		for k, v := range req.AdditionalPaymentInfo {
			cp.LegacyPayment.AdditionalPaymentInfo[k] = v
		}
	}

	return p.UpdatePayment(ctx, cp.ID, &dto.UpdateCartPaymentRequest{
		IdempotencyKey:    req.IdempotencyKey,
		PayerID:           cp.PayerID,
		Amount:            newAmount,
		ClientDescription: req.ClientDescription,
		SplitPayment:      req.SplitPayment,
	})
}

func (p *cartPaymentProcessor) CancelPaymentForLegacyCharge(ctx context.Context, chargeID int64) (*dto.CartPaymentResponse, error) {
	consumerCharge, err := p.legacySvc.GetConsumerCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	return p.CancelPayment(ctx, consumerCharge.CartPaymentID)
}

// CapturePaymentIntent captures an authorized intent. Precondition: the
// intent is REQUIRES_CAPTURE and its provider mirror carries a resource id.
func (p *cartPaymentProcessor) CapturePaymentIntent(ctx context.Context, intent *cartpayment.PaymentIntent) error {
	if intent.IntentStatus != types.PaymentIntentStatusRequiresCapture {
		return ierr.NewError("intent not awaiting capture").
			WithHintf("Payment intent is %s", intent.IntentStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	pgp, err := p.pgpForIntent(ctx, intent)
	if err != nil {
		return err
	}
	if pgp.ResourceID == nil {
		return ierr.NewError("intent has no provider resource id").
			WithHint("The payment cannot be captured before provider submission").
			Mark(ierr.ErrInvalidOperation)
	}

	key := p.keyGen.GenerateKey(idempotency.ScopeCapture, map[string]interface{}{
		"payment_intent_id": intent.ID,
	})

	provider, err := p.Gateway.CapturePaymentIntent(ctx, &gateway.CaptureIntentRequest{
		ResourceID:      *pgp.ResourceID,
		AmountToCapture: intent.AmountCapturable,
		IdempotencyKey:  key,
	})
	if err != nil {
		// Domain row keeps its pre-call state; the next sweep retries
		return err
	}

	if err := p.cartPaymentSvc.UpdateStateAfterCapture(ctx, intent, pgp, provider); err != nil {
		return err
	}

	stripeCharge, err := p.legacySvc.GetStripeChargeForIntent(ctx, intent)
	if err != nil {
		return err
	}
	if err := p.legacySvc.MarkChargeSucceeded(ctx, stripeCharge); err != nil {
		return err
	}

	p.EventPublisher.Publish(ctx, types.WebhookEventPaymentIntentCaptured, dto.NewPaymentIntentResponse(intent))
	return nil
}

// GetLegacyClientDescription truncates a client description to the legacy
// column limit. Nil passes through.
func (p *cartPaymentProcessor) GetLegacyClientDescription(description *string) *string {
	if description == nil {
		return nil
	}
	maxLen := p.Config.Payment.DescriptionMaxLen
	runes := []rune(*description)
	if len(runes) <= maxLen {
		return description
	}
	return lo.ToPtr(string(runes[:maxLen]))
}

// lockCartPayment takes the cart payment's FOR UPDATE row lock inside the
// current transaction. Every mutation of a cart payment or its intents
// serializes on it; a lost lock surfaces as CART_PAYMENT_UPDATE_CONFLICT from
// the repository.
func (p *cartPaymentProcessor) lockCartPayment(ctx context.Context, id string) error {
	_, err := p.CartPaymentRepo.GetCartPaymentByIDForUpdate(ctx, id)
	return err
}

// intentPhase classifies the intent from its provider mirror and refunds
func (p *cartPaymentProcessor) intentPhase(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent) (types.IntentPhase, error) {
	refunds, err := p.CartPaymentRepo.ListRefunds(ctx, intent.ID)
	if err != nil {
		return "", err
	}
	return ClassifyIntent(intent, []*cartpayment.PgpPaymentIntent{pgp}, refunds), nil
}

// latestActiveIntent returns the most recent intent that is not cancelled or
// failed
func (p *cartPaymentProcessor) latestActiveIntent(ctx context.Context, cartPaymentID string) (*cartpayment.PaymentIntent, error) {
	intents, err := p.CartPaymentRepo.ListPaymentIntents(ctx, cartPaymentID)
	if err != nil {
		return nil, err
	}

	for i := len(intents) - 1; i >= 0; i-- {
		status := intents[i].IntentStatus
		if status != types.PaymentIntentStatusCancelled && status != types.PaymentIntentStatusFailed {
			return intents[i], nil
		}
	}
	return nil, ierr.NewError("no active payment intent").
		WithHint("The cart payment has no intent left to adjust").
		Mark(ierr.ErrInvalidOperation)
}

func (p *cartPaymentProcessor) pgpForIntent(ctx context.Context, intent *cartpayment.PaymentIntent) (*cartpayment.PgpPaymentIntent, error) {
	pgps, err := p.CartPaymentRepo.ListPgpPaymentIntents(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	if len(pgps) == 0 {
		return nil, ierr.NewError("missing pgp payment intent").
			WithHintf("Intent %s has no provider mirror", intent.ID).
			Mark(ierr.ErrSystem)
	}
	return pgps[0], nil
}

func (p *cartPaymentProcessor) response(ctx context.Context, cp *cartpayment.CartPayment) (*dto.CartPaymentResponse, error) {
	intents, err := p.CartPaymentRepo.ListPaymentIntents(ctx, cp.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewCartPaymentResponse(cp, intents), nil
}

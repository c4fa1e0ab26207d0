package service

import (
	"context"
	"time"

	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	"github.com/cartpay/cartpay/internal/types"
)

// CaptureSweeper drives deferred captures: it periodically walks authorized
// intents whose capture_after deadline has passed and captures each one.
// Failures are isolated per intent so one bad row never stalls the sweep.
type CaptureSweeper interface {
	// Run blocks, sweeping on the configured interval until ctx is done
	Run(ctx context.Context) error
	// SweepOnce performs a single pass and reports how many intents it
	// captured
	SweepOnce(ctx context.Context) (int, error)
}

type captureSweeper struct {
	ServiceParams
	processor CartPaymentProcessor
}

func NewCaptureSweeper(params ServiceParams, processor CartPaymentProcessor) CaptureSweeper {
	return &captureSweeper{
		ServiceParams: params,
		processor:     processor,
	}
}

func (s *captureSweeper) Run(ctx context.Context) error {
	interval := s.Config.Payment.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	s.Logger.Infow("capture sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Infow("capture sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			captured, err := s.SweepOnce(ctx)
			if err != nil {
				s.Logger.Errorw("capture sweep failed", "error", err)
				continue
			}
			if captured > 0 {
				s.Logger.Infow("capture sweep finished", "captured", captured)
			}
		}
	}
}

// SweepOnce streams all intents due for capture and captures each in turn.
// A per-intent error is logged and the sweep moves on; the intent stays due
// and the next pass retries it.
func (s *captureSweeper) SweepOnce(ctx context.Context) (int, error) {
	cursor, err := s.CartPaymentRepo.FindIntentsRequiringCaptureBeforeCutoff(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	defer cursor.Close()

	captured := 0
	for {
		intent, err := cursor.Next(ctx)
		if err != nil {
			return captured, err
		}
		if intent == nil {
			return captured, nil
		}

		ok, err := s.isWellFormed(ctx, intent)
		if err != nil {
			s.Logger.Errorw("failed to inspect intent during sweep",
				"error", err,
				"payment_intent_id", intent.ID,
			)
			continue
		}
		if !ok {
			continue
		}

		if err := s.processor.CapturePaymentIntent(ctx, intent); err != nil {
			s.Logger.Errorw("failed to capture payment intent during sweep",
				"error", err,
				"payment_intent_id", intent.ID,
			)
			continue
		}
		captured++
	}
}

// isWellFormed guards the sweep against rows it should not touch: intents too
// old to repair, intents never submitted to the provider, and intents whose
// provider mirror disagrees on status. Skipped rows are logged for operators.
func (s *captureSweeper) isWellFormed(ctx context.Context, intent *cartpayment.PaymentIntent) (bool, error) {
	cutoff := time.Now().UTC().Add(-s.Config.Payment.CaptureSweepCutoff)
	if intent.CreatedAt.Before(cutoff) {
		s.Logger.Warnw("skipping stale intent during capture sweep",
			"payment_intent_id", intent.ID,
			"created_at", intent.CreatedAt,
		)
		return false, nil
	}

	pgps, err := s.CartPaymentRepo.ListPgpPaymentIntents(ctx, intent.ID)
	if err != nil {
		return false, err
	}
	if len(pgps) == 0 {
		s.Logger.Warnw("skipping intent with no provider mirror during capture sweep",
			"payment_intent_id", intent.ID,
		)
		return false, nil
	}

	for _, pgp := range pgps {
		if pgp.ResourceID == nil || *pgp.ResourceID == "" {
			s.Logger.Warnw("skipping intent never submitted to provider during capture sweep",
				"payment_intent_id", intent.ID,
				"pgp_payment_intent_id", pgp.ID,
			)
			return false, nil
		}
		if pgp.IntentStatus != types.PaymentIntentStatusRequiresCapture {
			s.Logger.Warnw("skipping intent with diverged provider status during capture sweep",
				"payment_intent_id", intent.ID,
				"pgp_payment_intent_id", pgp.ID,
				"intent_status", intent.IntentStatus,
				"pgp_status", pgp.IntentStatus,
			)
			return false, nil
		}
	}

	return true, nil
}

package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

const eventPaymentSucceeded = "payment.succeeded"

var (
	ErrValidation = errors.New("validation error")
	ErrBadPlan    = errors.New("plan is not purchasable")
)

type PaymentStore interface {
	Insert(ctx context.Context, p model.Payment) (bool, error)
}

type SubscriptionStore interface {
	ReplaceActive(ctx context.Context, userID int64, plan enums.Plan, start, end time.Time) (model.Subscription, error)
}

// Confirmation is the normalized provider webhook payload.
type Confirmation struct {
	Event             string
	ProviderPaymentID string
	UserID            int64
	Plan              enums.Plan
	Amount            string
	PaidAt            time.Time
}

type Service struct {
	payments PaymentStore
	subs     SubscriptionStore
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(payments PaymentStore, subs SubscriptionStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		payments: payments,
		subs:     subs,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Confirm applies one provider webhook event. Non-success events are ignored.
// A replayed provider payment id changes nothing, so the provider may retry
// the webhook freely. A confirmed payment replaces any active subscription
// with a fresh paid one starting now.
func (s *Service) Confirm(ctx context.Context, c Confirmation) (bool, error) {
	if s.payments == nil || s.subs == nil {
		return false, fmt.Errorf("payments service is not wired")
	}

	if c.Event != eventPaymentSucceeded {
		s.log.Debug("ignoring provider event", zap.String("event", c.Event))
		return false, nil
	}
	if c.UserID <= 0 || strings.TrimSpace(c.ProviderPaymentID) == "" {
		return false, ErrValidation
	}
	if !c.Plan.Valid() || !c.Plan.Paid() {
		return false, fmt.Errorf("%w: %s", ErrBadPlan, c.Plan)
	}

	paidAt := c.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now().UTC()
	}

	inserted, err := s.payments.Insert(ctx, model.Payment{
		ID:                s.newID(),
		UserID:            c.UserID,
		ProviderPaymentID: strings.TrimSpace(c.ProviderPaymentID),
		Plan:              c.Plan,
		Amount:            c.Amount,
		PaidAt:            paidAt,
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		s.log.Info("duplicate payment webhook",
			zap.Int64("user_id", c.UserID),
			zap.String("provider_payment_id", c.ProviderPaymentID))
		return false, nil
	}

	start := s.now().UTC()
	if _, err := s.subs.ReplaceActive(ctx, c.UserID, c.Plan, start, start.Add(c.Plan.Duration())); err != nil {
		return false, fmt.Errorf("activate paid subscription: %w", err)
	}

	s.log.Info("subscription activated from payment",
		zap.Int64("user_id", c.UserID),
		zap.String("plan", string(c.Plan)))
	return true, nil
}

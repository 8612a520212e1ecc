package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
	"github.com/lubowsky/mood-tracker/internal/domain/rules"
	pgrepo "github.com/lubowsky/mood-tracker/internal/repo/postgres"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrTrialAlreadyUsed = errors.New("trial already used")
)

type Store interface {
	FindActiveByUser(ctx context.Context, userID int64) (model.Subscription, error)
	ReplaceActive(ctx context.Context, userID int64, plan enums.Plan, start, end time.Time) (model.Subscription, error)
	Deactivate(ctx context.Context, subID int64) error
	MarkWarned3Days(ctx context.Context, subID int64) error
	MarkWarned1Day(ctx context.Context, subID int64) error
	MarkExpiredNotified(ctx context.Context, subID int64) error
	HasEverHadPlan(ctx context.Context, userID int64, plan enums.Plan) (bool, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
}

type Config struct {
	TrialDuration time.Duration
}

type Service struct {
	store Store
	users UserStore
	cfg   Config
	now   func() time.Time
}

func NewService(store Store, users UserStore, cfg Config) *Service {
	if cfg.TrialDuration <= 0 {
		cfg.TrialDuration = enums.PlanTrial.Duration()
	}
	return &Service{
		store: store,
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Service) FindActive(ctx context.Context, userID int64) (model.Subscription, error) {
	if userID <= 0 {
		return model.Subscription{}, ErrValidation
	}
	if s.store == nil {
		return model.Subscription{}, fmt.Errorf("subscription store is nil")
	}

	return s.store.FindActiveByUser(ctx, userID)
}

// GrantTrial issues the one-time trial subscription on first contact. A user
// who ever held a trial record, or whose trial is exhausted, is refused.
func (s *Service) GrantTrial(ctx context.Context, user model.User) (model.Subscription, error) {
	if user.ID <= 0 {
		return model.Subscription{}, ErrValidation
	}
	if s.store == nil {
		return model.Subscription{}, fmt.Errorf("subscription store is nil")
	}
	if user.IsTrialExhausted {
		return model.Subscription{}, ErrTrialAlreadyUsed
	}

	had, err := s.store.HasEverHadPlan(ctx, user.ID, enums.PlanTrial)
	if err != nil {
		return model.Subscription{}, err
	}
	if had {
		return model.Subscription{}, ErrTrialAlreadyUsed
	}

	start := s.now().UTC()
	return s.store.ReplaceActive(ctx, user.ID, enums.PlanTrial, start, start.Add(s.cfg.TrialDuration))
}

func (s *Service) Deactivate(ctx context.Context, subID int64) error {
	if subID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("subscription store is nil")
	}
	return s.store.Deactivate(ctx, subID)
}

// MarkWarned records that a lifecycle notification was delivered. Flags are
// monotonic; marking twice is a no-op at the store level.
func (s *Service) MarkWarned(ctx context.Context, subID int64, kind enums.EventKind) error {
	if subID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("subscription store is nil")
	}

	switch kind {
	case enums.EventWarn3Days:
		return s.store.MarkWarned3Days(ctx, subID)
	case enums.EventWarn1Day:
		return s.store.MarkWarned1Day(ctx, subID)
	case enums.EventExpired:
		return s.store.MarkExpiredNotified(ctx, subID)
	}
	return fmt.Errorf("%w: %s is not a lifecycle kind", ErrValidation, kind)
}

// HasAccess is the capability predicate exposed to the menu/UI layer.
func (s *Service) HasAccess(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, ErrValidation
	}
	if s.store == nil || s.users == nil {
		return false, fmt.Errorf("subscription service is not wired")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	sub, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSubscriptionNotFound) {
			return rules.HasAccess(user, nil, now), nil
		}
		return false, err
	}

	return rules.HasAccess(user, &sub, now), nil
}

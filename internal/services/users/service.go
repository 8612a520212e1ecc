package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/model"
	"github.com/lubowsky/mood-tracker/internal/domain/rules"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUserNotFound = errors.New("user not found")
)

type Store interface {
	Ensure(ctx context.Context, id int64, firstName, username string) (model.User, bool, error)
	FindByID(ctx context.Context, id int64) (model.User, error)
	ListActive(ctx context.Context) ([]model.User, error)
	UpdateSettings(ctx context.Context, id int64, s model.UserSettings) error
	MarkUnreachable(ctx context.Context, id int64) error
	SetTrialExhausted(ctx context.Context, id int64) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register creates the user on first contact with default settings, or
// refreshes the stored name fields for a returning user.
func (s *Service) Register(ctx context.Context, id int64, firstName, username string) (model.User, bool, error) {
	if id <= 0 {
		return model.User{}, false, ErrValidation
	}
	if s.store == nil {
		return model.User{}, false, fmt.Errorf("user store is nil")
	}

	return s.store.Ensure(ctx, id, firstName, username)
}

func (s *Service) Get(ctx context.Context, id int64) (model.User, error) {
	if id <= 0 {
		return model.User{}, ErrValidation
	}
	if s.store == nil {
		return model.User{}, fmt.Errorf("user store is nil")
	}

	return s.store.FindByID(ctx, id)
}

// ListActive returns every user the scheduler should consider on a tick.
func (s *Service) ListActive(ctx context.Context) ([]model.User, error) {
	if s.store == nil {
		return nil, fmt.Errorf("user store is nil")
	}
	return s.store.ListActive(ctx)
}

// UpdateAnchors changes the morning/evening anchor times after validating the
// HH:MM format. An evening anchor at or before the morning one is accepted
// (only daytime slots degrade), matching the scheduler's degenerate-window
// handling.
func (s *Service) UpdateAnchors(ctx context.Context, id int64, morning, evening string) error {
	if _, err := rules.ParseAnchor(morning); err != nil {
		return fmt.Errorf("%w: morning anchor", ErrValidation)
	}
	if _, err := rules.ParseAnchor(evening); err != nil {
		return fmt.Errorf("%w: evening anchor", ErrValidation)
	}

	return s.patchSettings(ctx, id, func(settings *model.UserSettings) {
		settings.MorningTime = morning
		settings.EveningTime = evening
	})
}

func (s *Service) SetTimezone(ctx context.Context, id int64, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrValidation, tz)
	}

	return s.patchSettings(ctx, id, func(settings *model.UserSettings) {
		settings.Timezone = tz
	})
}

func (s *Service) SetNotificationsEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.patchSettings(ctx, id, func(settings *model.UserSettings) {
		settings.NotificationsEnabled = enabled
	})
}

func (s *Service) SetDaytimeNotifications(ctx context.Context, id int64, enabled bool) error {
	return s.patchSettings(ctx, id, func(settings *model.UserSettings) {
		settings.DaytimeNotifications = enabled
	})
}

func (s *Service) SetHomeName(ctx context.Context, id int64, name string) error {
	return s.patchSettings(ctx, id, func(settings *model.UserSettings) {
		settings.HomeName = name
	})
}

// MarkUnreachable is the durable reaction to a permanent delivery failure.
func (s *Service) MarkUnreachable(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("user store is nil")
	}

	return s.store.MarkUnreachable(ctx, id)
}

func (s *Service) SetTrialExhausted(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("user store is nil")
	}

	return s.store.SetTrialExhausted(ctx, id)
}

func (s *Service) patchSettings(ctx context.Context, id int64, patch func(*model.UserSettings)) error {
	if id <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("user store is nil")
	}

	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	settings := u.Settings
	patch(&settings)
	return s.store.UpdateSettings(ctx, id, settings)
}

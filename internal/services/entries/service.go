package entries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

const (
	minScore = 1
	maxScore = 10

	statsWindow = 30 * 24 * time.Hour
)

var ErrValidation = errors.New("validation error")

type Store interface {
	Insert(ctx context.Context, e model.MoodEntry) (model.MoodEntry, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]model.MoodEntry, error)
	AverageScores(ctx context.Context, userID int64, since time.Time) (float64, float64, int, error)
}

type Stats struct {
	AvgMood     float64
	AvgPhysical float64
	Entries     int
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// RecordSurvey persists the answers collected by a finished survey flow.
// Missing scores default to the scale midpoint so partial flows still produce
// a usable record.
func (s *Service) RecordSurvey(ctx context.Context, userID int64, kind enums.EventKind, state model.ConversationState, note string) (model.MoodEntry, error) {
	if userID <= 0 || !kind.Survey() {
		return model.MoodEntry{}, ErrValidation
	}
	if s.store == nil {
		return model.MoodEntry{}, fmt.Errorf("entry store is nil")
	}

	now := s.now().UTC()
	mood := (minScore + maxScore) / 2
	if state.MoodScore != nil {
		mood = *state.MoodScore
	}
	if err := validScore(mood); err != nil {
		return model.MoodEntry{}, err
	}
	if state.SleepQuality != nil {
		if err := validScore(*state.SleepQuality); err != nil {
			return model.MoodEntry{}, err
		}
	}

	return s.store.Insert(ctx, model.MoodEntry{
		UserID:        userID,
		RecordedAt:    now,
		TimeOfDay:     timeOfDayFor(kind),
		MoodScore:     mood,
		PhysicalScore: mood,
		SleepQuality:  state.SleepQuality,
		Note:          note,
		Source:        enums.SourceForEvent(kind),
	})
}

// RecordManual saves a free-form entry added from the menu.
func (s *Service) RecordManual(ctx context.Context, userID int64, mood, physical int, note string) (model.MoodEntry, error) {
	if userID <= 0 {
		return model.MoodEntry{}, ErrValidation
	}
	if s.store == nil {
		return model.MoodEntry{}, fmt.Errorf("entry store is nil")
	}
	if err := validScore(mood); err != nil {
		return model.MoodEntry{}, err
	}
	if err := validScore(physical); err != nil {
		return model.MoodEntry{}, err
	}

	now := s.now().UTC()
	return s.store.Insert(ctx, model.MoodEntry{
		UserID:        userID,
		RecordedAt:    now,
		TimeOfDay:     timeOfDayForHour(now.Hour()),
		MoodScore:     mood,
		PhysicalScore: physical,
		Note:          note,
		Source:        enums.EntrySourceManual,
	})
}

func (s *Service) Recent(ctx context.Context, userID int64, limit int) ([]model.MoodEntry, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, fmt.Errorf("entry store is nil")
	}
	return s.store.ListRecent(ctx, userID, limit)
}

// MonthlyStats aggregates the last 30 days of records.
func (s *Service) MonthlyStats(ctx context.Context, userID int64) (Stats, error) {
	if userID <= 0 {
		return Stats{}, ErrValidation
	}
	if s.store == nil {
		return Stats{}, fmt.Errorf("entry store is nil")
	}

	mood, physical, count, err := s.store.AverageScores(ctx, userID, s.now().UTC().Add(-statsWindow))
	if err != nil {
		return Stats{}, err
	}
	return Stats{AvgMood: mood, AvgPhysical: physical, Entries: count}, nil
}

func validScore(n int) error {
	if n < minScore || n > maxScore {
		return fmt.Errorf("%w: score %d out of range", ErrValidation, n)
	}
	return nil
}

func timeOfDayFor(kind enums.EventKind) enums.TimeOfDay {
	switch kind {
	case enums.EventMorningSurvey:
		return enums.TimeOfDayMorning
	case enums.EventEveningSurvey:
		return enums.TimeOfDayEvening
	}
	return enums.TimeOfDayAfternoon
}

func timeOfDayForHour(hour int) enums.TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return enums.TimeOfDayMorning
	case hour >= 12 && hour < 18:
		return enums.TimeOfDayAfternoon
	case hour >= 18 && hour < 23:
		return enums.TimeOfDayEvening
	}
	return enums.TimeOfDayNight
}

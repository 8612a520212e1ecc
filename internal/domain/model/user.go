package model

import (
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
)

// UserSettings is the per-user notification configuration. Anchor times are
// local wall-clock values in the user's own timezone, minute precision.
type UserSettings struct {
	Timezone             string `json:"timezone"`
	MorningTime          string `json:"morning_time"`
	EveningTime          string `json:"evening_time"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	DaytimeNotifications bool   `json:"daytime_notifications"`
	HomeName             string `json:"home_name"`
}

type User struct {
	ID               int64            `json:"id"` // telegram chat id
	FirstName        string           `json:"first_name"`
	Username         string           `json:"username"`
	Role             enums.Role       `json:"role"`
	Status           enums.UserStatus `json:"status"`
	IsTrialExhausted bool             `json:"is_trial_exhausted"`
	Settings         UserSettings     `json:"settings"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// DefaultSettings mirrors what a user gets on first contact.
func DefaultSettings() UserSettings {
	return UserSettings{
		Timezone:             "Europe/Moscow",
		MorningTime:          "09:00",
		EveningTime:          "21:00",
		NotificationsEnabled: true,
		DaytimeNotifications: true,
	}
}

package model

import (
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
)

// Subscription is one ledger record. A user has at most one record with
// IsActive=true at any instant; expired or replaced records are deactivated,
// never deleted. The three warning flags are monotonic for the record's
// lifetime.
type Subscription struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	Plan            enums.Plan `json:"plan"`
	IsActive        bool       `json:"is_active"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	Warned3Days     bool       `json:"warned_3days"`
	Warned1Day      bool       `json:"warned_1day"`
	ExpiredNotified bool       `json:"expired_notified"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

package rules

import (
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

type LifecycleAction int

const (
	LifecycleNone LifecycleAction = iota
	LifecycleExpire
	LifecycleWarn3Days
	LifecycleWarn1Day
)

const day = 24 * time.Hour

// NextLifecycleAction decides the single lifecycle transition due for an
// active subscription record at "now". The warning thresholds are
// non-overlapping half-open windows, so a tick landing exactly on a boundary
// fires at most one warning; a flag already set suppresses re-firing even if
// the window is revisited after a restart.
func NextLifecycleAction(sub model.Subscription, now time.Time) LifecycleAction {
	if !sub.IsActive {
		return LifecycleNone
	}
	if !sub.EndDate.After(now) {
		return LifecycleExpire
	}

	left := sub.EndDate.Sub(now)
	switch {
	case left <= 3*day && left > 2*day && !sub.Warned3Days:
		return LifecycleWarn3Days
	case left <= day && !sub.Warned1Day:
		// left > 0 is guaranteed: the record has not expired yet.
		return LifecycleWarn1Day
	}
	return LifecycleNone
}

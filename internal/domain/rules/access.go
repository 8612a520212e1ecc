package rules

import (
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

// HasAccess is the capability predicate gating survey delivery and menu
// features. Privileged roles always pass. Otherwise the user needs an active,
// non-expired subscription, and a trial record only counts while the user's
// trial has never been exhausted. The exhaustion flag wins even over a record
// erroneously left active.
func HasAccess(u model.User, sub *model.Subscription, now time.Time) bool {
	if u.Role.Privileged() {
		return true
	}
	if sub == nil || !sub.IsActive || !sub.EndDate.After(now) {
		return false
	}
	if sub.Plan == enums.PlanTrial && u.IsTrialExhausted {
		return false
	}
	return true
}

package enums

import "time"

type Plan string

const (
	PlanTrial  Plan = "trial"
	Plan7Days  Plan = "7days"
	Plan30Days Plan = "30days"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanTrial, Plan7Days, Plan30Days:
		return true
	}
	return false
}

// Duration returns the subscription lifetime granted by the plan.
func (p Plan) Duration() time.Duration {
	switch p {
	case PlanTrial:
		return 24 * time.Hour
	case Plan7Days:
		return 7 * 24 * time.Hour
	case Plan30Days:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Paid reports whether the plan can be purchased through the payment provider.
func (p Plan) Paid() bool {
	return p == Plan7Days || p == Plan30Days
}

package enums

// EventKind names a time-sensitive notification the scheduler can decide to
// send. Survey kinds launch a guided check-in flow; lifecycle kinds report
// subscription state.
type EventKind string

const (
	EventMorningSurvey EventKind = "morning_survey"
	EventDaytimeSurvey EventKind = "daytime_survey"
	EventEveningSurvey EventKind = "evening_survey"
	EventWarn3Days     EventKind = "warn_3days"
	EventWarn1Day      EventKind = "warn_1day"
	EventExpired       EventKind = "expired"
)

func (k EventKind) Survey() bool {
	switch k {
	case EventMorningSurvey, EventDaytimeSurvey, EventEveningSurvey:
		return true
	}
	return false
}

func (k EventKind) Lifecycle() bool {
	switch k {
	case EventWarn3Days, EventWarn1Day, EventExpired:
		return true
	}
	return false
}

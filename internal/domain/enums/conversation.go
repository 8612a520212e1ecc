package enums

// SurveyFlow identifies which guided check-in a user is currently inside.
type SurveyFlow string

const (
	FlowMorning SurveyFlow = "morning"
	FlowDaytime SurveyFlow = "daytime"
	FlowEvening SurveyFlow = "evening"
)

func (f SurveyFlow) Valid() bool {
	switch f {
	case FlowMorning, FlowDaytime, FlowEvening:
		return true
	}
	return false
}

// FlowForEvent maps a survey event kind to its conversation flow. Lifecycle
// kinds have no flow and map to the empty value; callers gate on Survey().
func FlowForEvent(kind EventKind) SurveyFlow {
	switch kind {
	case EventMorningSurvey:
		return FlowMorning
	case EventDaytimeSurvey:
		return FlowDaytime
	case EventEveningSurvey:
		return FlowEvening
	}
	return ""
}

// EventForFlow is the inverse mapping, used when a finished conversation is
// turned back into a journal record.
func EventForFlow(flow SurveyFlow) EventKind {
	switch flow {
	case FlowMorning:
		return EventMorningSurvey
	case FlowEvening:
		return EventEveningSurvey
	}
	return EventDaytimeSurvey
}

// ConversationStep is the closed set of states a survey flow can be in.
// Transitions are handled exhaustively by the bot callback handlers; there is
// no free-form step matching.
type ConversationStep string

const (
	StepAwaitSleepQuality ConversationStep = "await_sleep_quality"
	StepAwaitMoodScore    ConversationStep = "await_mood_score"
	StepAwaitNote         ConversationStep = "await_note"
	StepDone              ConversationStep = "done"
)

func (s ConversationStep) Valid() bool {
	switch s {
	case StepAwaitSleepQuality, StepAwaitMoodScore, StepAwaitNote, StepDone:
		return true
	}
	return false
}

// FirstStep returns the initial step of a flow. The morning flow opens with
// sleep quality, the others go straight to the mood score.
func FirstStep(flow SurveyFlow) ConversationStep {
	if flow == FlowMorning {
		return StepAwaitSleepQuality
	}
	return StepAwaitMoodScore
}

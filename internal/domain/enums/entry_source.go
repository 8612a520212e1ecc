package enums

type EntrySource string

const (
	EntrySourceManual        EntrySource = "manual"
	EntrySourceMorningSurvey EntrySource = "morning_survey"
	EntrySourceDaytimePrompt EntrySource = "daytime_notification"
	EntrySourceEveningPrompt EntrySource = "evening_notification"
)

// SourceForEvent maps a survey event kind to the entry source recorded for
// answers given in that flow.
func SourceForEvent(kind EventKind) EntrySource {
	switch kind {
	case EventMorningSurvey:
		return EntrySourceMorningSurvey
	case EventDaytimeSurvey:
		return EntrySourceDaytimePrompt
	case EventEveningSurvey:
		return EntrySourceEveningPrompt
	}
	return EntrySourceManual
}

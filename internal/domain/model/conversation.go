package model

import (
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
)

// ConversationState is the current position of a user inside a survey flow,
// kept in the keyed conversation store.
type ConversationState struct {
	Flow      enums.SurveyFlow
	Step      enums.ConversationStep
	StartedAt time.Time

	// Partial answers collected so far.
	SleepQuality *int
	MoodScore    *int
}

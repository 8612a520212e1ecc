package model

import (
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
)

// MoodEntry is one journal record. Scores are on a 1..10 scale.
type MoodEntry struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	RecordedAt    time.Time         `json:"recorded_at"`
	TimeOfDay     enums.TimeOfDay   `json:"time_of_day"`
	MoodScore     int               `json:"mood_score"`
	PhysicalScore int               `json:"physical_score"`
	SleepQuality  *int              `json:"sleep_quality,omitempty"`
	Note          string            `json:"note,omitempty"`
	Source        enums.EntrySource `json:"source"`
}

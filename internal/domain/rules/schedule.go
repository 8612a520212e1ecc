package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
)

// ErrBadScheduleConfig marks a malformed user schedule (bad anchor time or
// unknown timezone). Callers log it and skip the user for the tick; it never
// aborts the tick for other users.
var ErrBadScheduleConfig = errors.New("bad schedule config")

// ParseAnchor parses an "HH:MM" anchor into minutes since local midnight.
func ParseAnchor(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: anchor %q", ErrBadScheduleConfig, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: anchor %q", ErrBadScheduleConfig, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: anchor %q", ErrBadScheduleConfig, s)
	}
	return h*60 + m, nil
}

// DaytimeSlots returns the three evenly spaced intermediate slots between the
// morning and evening anchors, in minutes since midnight. An evening anchor at
// or before the morning anchor yields no slots.
func DaytimeSlots(morningMin, eveningMin int) []int {
	span := eveningMin - morningMin
	if span <= 0 {
		return nil
	}
	slots := make([]int, 0, 3)
	for k := 1; k <= 3; k++ {
		slots = append(slots, morningMin+span*k/4)
	}
	return slots
}

// DueKinds maps "now" to the set of survey event kinds due this minute for a
// user with the given timezone, anchors and notification flags. It is a pure
// function: safe to call every tick with no memory of past calls. The
// exact-minute match means each kind is due during a single minute per day.
func DueKinds(now time.Time, tz, morning, evening string, notifEnabled, daytimeEnabled bool) ([]enums.EventKind, error) {
	if !notifEnabled {
		return nil, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q", ErrBadScheduleConfig, tz)
	}
	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()

	morningMin, err := ParseAnchor(morning)
	if err != nil {
		return nil, err
	}
	eveningMin, err := ParseAnchor(evening)
	if err != nil {
		return nil, err
	}

	var kinds []enums.EventKind
	if cur == morningMin {
		kinds = append(kinds, enums.EventMorningSurvey)
	}
	if daytimeEnabled {
		for _, slot := range DaytimeSlots(morningMin, eveningMin) {
			if cur == slot {
				kinds = append(kinds, enums.EventDaytimeSurvey)
				break
			}
		}
	}
	if cur == eveningMin {
		kinds = append(kinds, enums.EventEveningSurvey)
	}
	return kinds, nil
}

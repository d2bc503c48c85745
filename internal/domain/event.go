package domain

import (
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventTypeDifficulty EventType = "DIFFICULTY"
	EventTypeCategories EventType = "CATEGORIES"
	EventTypeBoth       EventType = "BOTH"
)

// PreferenceEvent carries the complete preference state of one user after a change.
type PreferenceEvent struct {
	UserID     string      `json:"userId"`
	Categories CategoryMap `json:"categories"`
	Difficulty *int        `json:"difficulty"`
	UpdatedAt  EventTime   `json:"updatedAt"`
	EventType  EventType   `json:"eventType"`
}

// EventTimeLayout is the local-time layout consumers of the event topic parse.
const EventTimeLayout = "2006-01-02T15:04:05.000"

// EventTime serializes without a zone offset, millisecond precision.
type EventTime time.Time

func (t EventTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(EventTimeLayout) + `"`), nil
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = EventTime{}
		return nil
	}

	parsed, err := time.ParseInLocation(EventTimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("parse event time: %w", err)
	}
	*t = EventTime(parsed)
	return nil
}

func (t EventTime) Time() time.Time {
	return time.Time(t)
}

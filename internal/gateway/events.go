package gateway

import (
	"encoding/json"
	"time"

	"github.com/kreymann/resetwatch/internal/alert"
	"github.com/kreymann/resetwatch/internal/models"
)

// Event is the envelope for everything pushed to dashboard clients.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType classifies a pushed event.
type EventType string

const (
	// EventTypeSnapshot carries the full TimerRecord list for one tick.
	EventTypeSnapshot EventType = "Snapshot"
	// EventTypeAlert carries one fired notification; the browser turns it
	// into the actual desktop/sound notification.
	EventTypeAlert EventType = "Alert"
)

// SnapshotPayload is the per-tick timer state.
type SnapshotPayload struct {
	Now    time.Time            `json:"now"`
	Timers []models.TimerRecord `json:"timers"`
}

// AlertPayload wraps a fired notification plus the user's delivery
// preferences; the browser decides which channels to actually use.
type AlertPayload struct {
	Notification alert.Notification `json:"notification"`
	Sound        bool               `json:"sound"`
	Desktop      bool               `json:"desktop"`
}

func newEvent(t EventType, at time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Type: t, Timestamp: at, Data: data}, nil
}

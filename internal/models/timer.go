package models

import "time"

// TimerKind classifies a countdown record.
type TimerKind string

const (
	TimerKindReset    TimerKind = "reset"
	TimerKindRecharge TimerKind = "recharge"
	TimerKindSpawn    TimerKind = "spawn"
	TimerKindWeekly   TimerKind = "weekly"
)

// TimerRecord is one countdown as of a single tick. Records are rebuilt from
// scratch every tick and never mutated in place; the only identity they carry
// is ID.
type TimerRecord struct {
	Kind             TimerKind `json:"kind"`
	ID               string    `json:"id"`
	Target           time.Time `json:"target"`
	SecondsRemaining int64     `json:"seconds_remaining"`
	AlertEnabled     bool      `json:"alert_enabled"`
}

// SpawnEntity is one boss spawn time slot. A boss with three daily spawn
// times contributes three independent entities, each with its own alert flag.
type SpawnEntity struct {
	ID    string `json:"id"`
	Time  string `json:"time"` // HH:MM in the reference timezone
	Alert bool   `json:"alert"`
}

// SpawnKey identifies a spawn entity: the boss id plus the slot's time-of-day.
func (s SpawnEntity) SpawnKey() string {
	return s.ID + "@" + s.Time
}

// WeeklyEntity is a weekly recurring event in the reference timezone.
type WeeklyEntity struct {
	ID    string `json:"id"`
	Day   string `json:"day"` // mon..sun
	Time  string `json:"time"`
	Alert bool   `json:"alert"`
}

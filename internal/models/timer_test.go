package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTimerRecordJSONKeepsDisabledAlertFlag(t *testing.T) {
	// Clients toggle alerts off a rendered list; a disabled slot must still
	// carry an explicit false rather than omitting the field.
	data, err := json.Marshal(TimerRecord{Kind: TimerKindSpawn, ID: "ice-golem@12:00"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"alert_enabled":false`) {
		t.Fatalf("disabled alert flag omitted: %s", data)
	}
}

func TestSpawnKey(t *testing.T) {
	s := SpawnEntity{ID: "storm-drake", Time: "20:30"}
	if got := s.SpawnKey(); got != "storm-drake@20:30" {
		t.Fatalf("SpawnKey() = %q", got)
	}
}

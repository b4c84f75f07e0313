package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kreymann/resetwatch/internal/engine"
	"github.com/kreymann/resetwatch/internal/models"
	"github.com/kreymann/resetwatch/internal/schedule"
)

// Config is the yaml timer configuration. Fixed game data (reference
// timezone, reset time, spawn tables) lives here; deployment settings come
// from the environment.
type Config struct {
	ReferenceTimezone string `yaml:"reference_timezone"`
	// DisplayTimezone is a rendering default for clients; the engine never
	// reads it. Due-ness is always decided in the reference timezone.
	DisplayTimezone string `yaml:"display_timezone"`
	DailyReset      string `yaml:"daily_reset"`
	Recharge        struct {
		IntervalMinutes int `yaml:"interval_minutes"`
	} `yaml:"recharge"`
	Spawns []struct {
		ID    string   `yaml:"id"`
		Times []string `yaml:"times"`
		Alert bool     `yaml:"alert"`
	} `yaml:"spawns"`
	Weeklies []struct {
		ID    string `yaml:"id"`
		Day   string `yaml:"day"`
		Time  string `yaml:"time"`
		Alert bool   `yaml:"alert"`
	} `yaml:"weeklies"`
	PreAlertMinutes      []int `yaml:"pre_alert_minutes"`
	ReminderHorizonHours int   `yaml:"reminder_horizon_hours"`
	Notifications        struct {
		Sound   bool `yaml:"sound"`
		Desktop bool `yaml:"desktop"`
	} `yaml:"notifications"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// engineConfig validates the fixed fields and expands each spawn time slot
// into its own entity. Entity-level schedule strings are validated again on
// every catalog build, where a bad one only skips that entity.
func (c *Config) engineConfig() (engine.Config, error) {
	zone, err := schedule.ParseZone(c.ReferenceTimezone)
	if err != nil {
		return engine.Config{}, fmt.Errorf("reference_timezone: %w", err)
	}
	reset, err := schedule.ParseTimeOfDay(c.DailyReset)
	if err != nil {
		return engine.Config{}, fmt.Errorf("daily_reset: %w", err)
	}
	if c.DisplayTimezone != "" {
		if _, err := schedule.ParseZone(c.DisplayTimezone); err != nil {
			return engine.Config{}, fmt.Errorf("display_timezone: %w", err)
		}
	}
	if c.Recharge.IntervalMinutes <= 0 {
		return engine.Config{}, fmt.Errorf("recharge.interval_minutes must be positive, got %d", c.Recharge.IntervalMinutes)
	}

	var spawns []models.SpawnEntity
	for _, s := range c.Spawns {
		for _, t := range s.Times {
			spawns = append(spawns, models.SpawnEntity{ID: s.ID, Time: t, Alert: s.Alert})
		}
	}
	var weeklies []models.WeeklyEntity
	for _, w := range c.Weeklies {
		weeklies = append(weeklies, models.WeeklyEntity{ID: w.ID, Day: w.Day, Time: w.Time, Alert: w.Alert})
	}

	return engine.Config{
		Zone:             zone,
		ResetTime:        reset,
		RechargeInterval: time.Duration(c.Recharge.IntervalMinutes) * time.Minute,
		Spawns:           spawns,
		Weeklies:         weeklies,
		PreAlertMinutes:  c.PreAlertMinutes,
		ReminderHorizon:  time.Duration(c.ReminderHorizonHours) * time.Hour,
		UserID:           getEnv("RESETWATCH_USER_ID", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

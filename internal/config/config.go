package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		Token     string `yaml:"token"`
		HubChatID int64  `yaml:"hub_chat_id"`
	} `yaml:"telegram"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Translation struct {
		GeminiAPIKey string `yaml:"gemini_api_key"`
	} `yaml:"translation"`
	Broadcast struct {
		Delay string `yaml:"delay"`
	} `yaml:"broadcast"`
	Leaderboard struct {
		DailyAt      string `yaml:"daily_at"`
		ResetWeekday string `yaml:"reset_weekday"`
		ResetAt      string `yaml:"reset_at"`
		FeedPort     string `yaml:"feed_port"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Missing file is fine, everything can come from the environment.
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty/invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Weekday parses a weekday name or returns the fallback.
func Weekday(raw string, fallback time.Weekday) time.Weekday {
	switch strings.ToLower(raw) {
	case "sunday":
		return time.Sunday
	case "monday":
		return time.Monday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	}
	return fallback
}

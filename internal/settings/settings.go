// Package settings persists display preferences under ~/.pinch.
//
// Only preferences live here: poll interval, autostart flag, theme, and the
// optional notification/status-server wiring. No credentials, tokens, or
// usage data are ever written to this file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// Poll interval bounds, in seconds.
	MinPollInterval = 15
	MaxPollInterval = 120

	DefaultPollInterval = 30
)

// Notifications configures severity-transition alerts.
type Notifications struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Webhook string `json:"webhook" mapstructure:"webhook"`
	NtfyURL string `json:"ntfy" mapstructure:"ntfy"`
}

// StatusServer configures the local presentation feed.
type StatusServer struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" mapstructure:"port"`
}

// Settings is the full preferences document.
type Settings struct {
	PollInterval  int           `json:"poll_interval" mapstructure:"poll_interval"`
	Autostart     bool          `json:"autostart" mapstructure:"autostart"`
	Theme         string        `json:"theme" mapstructure:"theme"` // auto, dark, light
	LogLevel      string        `json:"log_level" mapstructure:"log_level"`
	Notifications Notifications `json:"notifications" mapstructure:"notifications"`
	StatusServer  StatusServer  `json:"status_server" mapstructure:"status_server"`
}

func Defaults() Settings {
	return Settings{
		PollInterval: DefaultPollInterval,
		Theme:        "auto",
		LogLevel:     "info",
		StatusServer: StatusServer{Port: 7843},
	}
}

// Dir returns the preferences directory, created on demand elsewhere.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pinch")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "settings.json")
}

// DBPath is where the last-known snapshot store lives.
func DBPath() string {
	return filepath.Join(Dir(), "pinch.db")
}

// LogPath is where the run log is written.
func LogPath() string {
	return filepath.Join(Dir(), "pinch.log")
}

// Load reads settings from path, falling back to defaults when the file is
// absent. Unknown keys in the file are ignored and never written back.
func Load(path string) (Settings, error) {
	s := Defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	return s.clamped(), nil
}

// Save writes settings as indented JSON, owner-readable only.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(s.clamped(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Interval is the poll interval as a duration, always within bounds.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.clamped().PollInterval) * time.Second
}

func (s Settings) clamped() Settings {
	if s.PollInterval < MinPollInterval {
		s.PollInterval = MinPollInterval
	}
	if s.PollInterval > MaxPollInterval {
		s.PollInterval = MaxPollInterval
	}
	switch s.Theme {
	case "auto", "dark", "light":
	default:
		s.Theme = "auto"
	}
	return s
}

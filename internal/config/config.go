package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sunsched/internal/schedule"
)

// Config is the daemon's whole configuration file (YAML or JSON).
type Config struct {
	// Timezone is an IANA name, e.g. "Europe/Amsterdam". Empty means the
	// host's local zone.
	Timezone string `json:"timezone,omitempty"`

	Logging  LoggingConfig  `json:"logging,omitempty"`
	Storage  StorageConfig  `json:"storage,omitempty"`
	Sun      SunConfig      `json:"sun,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
	ICS      ICSConfig      `json:"ics,omitempty"`

	// Schedules authored directly in the config file, in the verbose
	// import form. They are merged with whatever storage holds.
	Schedules []schedule.ServiceImport `json:"schedules,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`
	// Console defaults to true when omitted.
	Console *bool         `json:"console,omitempty"`
	File    FileLogConfig `json:"file,omitempty"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ConsoleEnabled resolves the tri-state Console flag.
func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SunConfig struct {
	// File is the JSON sun file maintained by an external ephemeris
	// producer. Empty disables solar schedules.
	File string `json:"file,omitempty"`
	// Refresh is a cron spec (robfig/cron, descriptors allowed) for
	// periodic reloads of the sun file. Default "@every 1h".
	Refresh string `json:"refresh,omitempty"`
	// Watch additionally reloads the file on write events.
	Watch bool `json:"watch,omitempty"`
}

type ICSConfig struct {
	// File is where the iCalendar feed is written. Empty disables the
	// export. The feed is rewritten on startup and whenever a sun
	// snapshot lands.
	File string `json:"file,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// Load reads and strictly decodes the config file. YAML is coerced to
// JSON first so one strict decoder (DisallowUnknownFields) covers both.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// Reject trailing tokens (e.g. concatenated JSON).
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("invalid config: trailing data")
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return errors.New("telegram.token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return errors.New("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// Location resolves the configured timezone. Validate has already checked
// it parses.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

package storage

import (
	"errors"
	"time"

	"sunsched/internal/schedule"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot file
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is one persisted schedule: a stable ID plus the exported
// schedule data. Keep it compact and schema-stable.
type Record struct {
	ID string `json:"id"`
	schedule.Data
}

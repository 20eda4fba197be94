package storage

// Package storage persists schedules between restarts.
//
// A schedule is stored in its exported shape: compact entry strings plus
// the action table (see internal/schedule). Two drivers exist:
//   - "file": dependency-free JSON snapshot with atomic replace
//   - "sqlite": SQLite database file (build with -tags sqlite)

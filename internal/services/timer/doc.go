// Package timer drives schedules against the wall clock.
//
// Each registered schedule gets a goroutine that arms a single timer for
// the schedule's closest upcoming entry, dispatches that entry's service
// calls when the timer fires, and re-arms. Sun snapshots are refreshed on
// a cron cadence (and optionally on file change) and pushed to every
// runner; a runner only moves its armed timer when the new snapshot
// shifts the upcoming fire time past the drift floor without exceeding
// the drift ceiling.
package timer

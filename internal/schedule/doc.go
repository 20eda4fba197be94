package schedule

// Package schedule implements the recurring-schedule core: the entry and
// action data model, the compact text codec used for persistence, the
// next-occurrence calculator, the active-window detector and the action
// resolver.
//
// Everything here is pure: operations are deterministic functions of the
// schedule data, the caller-supplied "now" and the caller-supplied sun
// lookup. A Schedule is a single-owner value; embedders that share one
// across goroutines must serialize access themselves.

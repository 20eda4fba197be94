package schedule

import "errors"

var (
	// ErrMalformedEntry reports a compact entry string that does not match
	// the D/T/A grammar. Callers should reject the record, not partially
	// load it.
	ErrMalformedEntry = errors.New("malformed schedule entry")

	// ErrInvalidTimeSpec reports an encode of a TimeSpec that is neither
	// fixed nor solar-relative. This is a programming error, not a data
	// error.
	ErrInvalidTimeSpec = errors.New("invalid time spec")

	// ErrNoUpcomingOccurrence reports an entry that cannot fire within the
	// probe horizon, i.e. its day set is empty or holds no valid weekday.
	ErrNoUpcomingOccurrence = errors.New("no upcoming occurrence")

	// ErrNoSunData reports a solar-relative time evaluated without an
	// installed sun snapshot, or with a snapshot that cannot answer for
	// the requested event.
	ErrNoSunData = errors.New("no sun data installed")

	// ErrAmbiguousDomain reports an action whose service (or entity)
	// cannot be namespaced because neither side carries a domain.
	ErrAmbiguousDomain = errors.New("ambiguous service domain")
)

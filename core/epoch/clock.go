package epoch

import "time"

const (
	// WeekSeconds is the protocol week length. Weeks never observe DST or
	// calendar boundaries; they are flat 604800 second windows.
	WeekSeconds int64 = 604800

	// DefaultGenesis anchors week zero. Fixed protocol constant; changing it
	// retroactively re-partitions every persisted weekly record.
	DefaultGenesis int64 = 1700352000
)

// Clock maps wall-clock timestamps onto protocol week numbers.
type Clock struct {
	Genesis int64
}

// NewClock builds a clock anchored at the supplied genesis timestamp. A zero
// genesis falls back to the protocol default.
func NewClock(genesis int64) Clock {
	if genesis == 0 {
		genesis = DefaultGenesis
	}
	return Clock{Genesis: genesis}
}

// WeekAt returns the week number containing the supplied unix timestamp.
// Timestamps before genesis produce negative week numbers; they are accepted
// because callers use them for validation rather than indexing.
func (c Clock) WeekAt(ts int64) int64 {
	delta := ts - c.Genesis
	week := delta / WeekSeconds
	if delta < 0 && delta%WeekSeconds != 0 {
		week--
	}
	return week
}

// WeekOf is WeekAt for time.Time values.
func (c Clock) WeekOf(t time.Time) int64 {
	return c.WeekAt(t.Unix())
}

// Bounds returns the inclusive start and exclusive end timestamps of a week.
func (c Clock) Bounds(week int64) (start, end int64) {
	start = c.Genesis + week*WeekSeconds
	return start, start + WeekSeconds
}

package clock

import "time"

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in UTC
type RealClock struct{}

func New() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Unix returns the clock's current time as unix seconds, the resolution
// stored in documents.
func Unix(c Clock) int64 {
	return c.Now().Unix()
}

// FromUnix converts a stored document timestamp back to a UTC time.
// Zero means unset and yields the zero time.
func FromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

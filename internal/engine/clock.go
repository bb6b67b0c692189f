package engine

import "time"

// Clock supplies wall-clock time for timestamps and log suppression.
// Tests substitute a fake so that results are reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

package poller

import "time"

// Clock provides the current time. Flow deadlines are measured against it so
// tests can expire a flow without waiting for its real lifetime.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

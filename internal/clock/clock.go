// Package clock abstracts time so timed loops (dispatcher ticks,
// visibility scans, long-poll waits) can be tested against virtual time
// instead of sleeping real wall-clock seconds.
package clock

import "time"

// Clock provides the current time and timer channels.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock wraps the time package.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

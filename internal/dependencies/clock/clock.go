package clock

import "time"

// Clock is the time source for connection bookkeeping. Tests swap in
// mocks.MockClock to pin connected-at stamps.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type systemClock struct{}

// New returns the wall clock
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

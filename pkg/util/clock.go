package util

import "time"

// Clock is the trade timestamp source, replaceable in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

package network

import "time"

// Clock is a monotonic millisecond wall clock.
type Clock interface {
	Millis() int64
}

type systemClock struct {
	start time.Time
}

// SystemClock returns a Clock backed by the monotonic reading of time.Now.
func SystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Millis() int64 {
	return time.Since(c.start).Milliseconds()
}

package archive

import "time"

// Clock supplies the current time to handles and the reaper.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns a Clock backed by time.Now.
func RealClock() Clock {
	return realClock{}
}

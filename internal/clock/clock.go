package clock

import "time"

// Clock abstracts wall-clock reads so time-dependent logic can be tested
// with a fake.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

package domain

import "time"

// Clock supplies the current moment
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (time.Local when nil)
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same moment
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

package clock

import "time"

// Clock is the authoritative time source, read at the point of use.
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Package clock abstracts wall-clock reads and waits so the scheduling loop
// can be driven by a fake clock in tests.
package clock

import "time"

// Clock is the time source used by the scheduler and the repost service.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// System is the real clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }

var _ Clock = System{}

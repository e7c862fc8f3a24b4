// Package scheduler implements the Scheduler port with wall-clock timers.
package scheduler

import "time"

// Wall arms one-shot callbacks with time.AfterFunc. Callbacks run on their
// own goroutine.
type Wall struct{}

// Schedule arms fn to run after d. Negative delays fire immediately.
func (Wall) Schedule(d time.Duration, fn func()) (cancel func()) {
	if d < 0 {
		d = 0
	}
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

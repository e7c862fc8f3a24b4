// Package timeprovider implements the Clock port with real system time and
// a fixed clock that tests can step manually.
package timeprovider

import (
	"sync"
	"time"
)

// RealClock implements ports.Clock using real system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock implements ports.Clock with a fixed time for testing.
type FixedClock struct {
	mu        sync.Mutex
	fixedTime time.Time
}

// NewFixedClock creates a new FixedClock with the given time.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{fixedTime: t}
}

// Now returns the fixed time.
func (f *FixedClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fixedTime
}

// SetTime updates the fixed time (useful for testing time progression).
func (f *FixedClock) SetTime(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixedTime = t
}

// AddTime adds a duration to the current fixed time.
func (f *FixedClock) AddTime(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixedTime = f.fixedTime.Add(d)
}

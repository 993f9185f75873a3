package coloop

import (
	"math"
	"time"
)

// Forever is the readiness check budget used when no timer is
// pending: the check blocks until some descriptor is ready.
const Forever time.Duration = -1

// Readiness is the result of one readiness check.
type Readiness struct {
	Readable []int
	Writable []int
}

// Poller performs a single bounded readiness check over the
// registered descriptors. A negative timeout blocks until at least
// one descriptor is ready, zero returns immediately. Descriptors not
// reported ready stay registered with the scheduler.
//
// An error returned by Wait is fatal to the scheduler loop.
type Poller interface {
	Wait(reads, writes []int, timeout time.Duration) (Readiness, error)
}

// PollerFunc adapts an ordinary function to the Poller interface.
type PollerFunc func(reads, writes []int, timeout time.Duration) (Readiness, error)

// Wait calls f(reads, writes, timeout).
func (f PollerFunc) Wait(reads, writes []int, timeout time.Duration) (Readiness, error) {
	return f(reads, writes, timeout)
}

// pollTimeout converts a budget to poll(2) milliseconds. Budgets
// below one millisecond round up so an unexpired timer never makes
// the loop spin.
func pollTimeout(d time.Duration) int {
	switch {
	case d < 0:
		return -1
	case d == 0:
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

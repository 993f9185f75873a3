//go:build !darwin && !dragonfly && !freebsd && !linux && !netbsd && !openbsd

package coloop

import (
	"time"

	"github.com/pkg/errors"
)

// sleepPoller only supports timers. Registering a descriptor on a
// platform without poll(2) support makes the readiness check fail.
type sleepPoller struct{}

// NewPoller returns a Poller that can only sleep until the next
// timer.
func NewPoller() Poller {
	return sleepPoller{}
}

func (sleepPoller) Wait(reads, writes []int, timeout time.Duration) (Readiness, error) {
	if len(reads) > 0 || len(writes) > 0 {
		return Readiness{}, errors.New("coloop: descriptor readiness is not supported on this platform")
	}
	if timeout < 0 {
		return Readiness{}, errors.New("coloop: unbounded wait with nothing to wait for")
	}
	time.Sleep(timeout)
	return Readiness{}, nil
}

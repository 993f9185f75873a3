//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package coloop

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	pollReadable = unix.POLLIN | unix.POLLHUP | unix.POLLERR
	pollWritable = unix.POLLOUT | unix.POLLHUP | unix.POLLERR
)

// pollPoller is the default Poller, built on poll(2).
type pollPoller struct {
	fds   []unix.PollFd
	index map[int]int
}

// NewPoller returns the default poll(2) based Poller.
func NewPoller() Poller {
	return &pollPoller{index: make(map[int]int)}
}

func (p *pollPoller) Wait(reads, writes []int, timeout time.Duration) (Readiness, error) {
	p.build(reads, writes)

	start := time.Now()
	remaining := timeout
	for {
		_, err := unix.Poll(p.fds, pollTimeout(remaining))
		if err == nil {
			break
		}
		if err != unix.EINTR {
			return Readiness{}, errors.Wrap(err, "poll")
		}
		if timeout >= 0 {
			remaining = max(0, timeout-time.Since(start))
		}
	}

	var rd Readiness
	for _, pfd := range p.fds {
		if pfd.Revents&unix.POLLNVAL != 0 {
			return Readiness{}, errors.Wrapf(ErrBadDescriptor, "fd %d", pfd.Fd)
		}
		if pfd.Events&unix.POLLIN != 0 && pfd.Revents&pollReadable != 0 {
			rd.Readable = append(rd.Readable, int(pfd.Fd))
		}
		if pfd.Events&unix.POLLOUT != 0 && pfd.Revents&pollWritable != 0 {
			rd.Writable = append(rd.Writable, int(pfd.Fd))
		}
	}
	return rd, nil
}

// build fills p.fds with one entry per distinct descriptor.
func (p *pollPoller) build(reads, writes []int) {
	clear(p.index)
	p.fds = p.fds[:0]

	for _, fd := range reads {
		p.index[fd] = len(p.fds)
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	for _, fd := range writes {
		if i, ok := p.index[fd]; ok {
			p.fds[i].Events |= unix.POLLOUT
			continue
		}
		p.index[fd] = len(p.fds)
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLOUT})
	}
}

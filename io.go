//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package coloop

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ListenBacklog is the backlog passed to listen(2) by Listen.
const ListenBacklog = 128

// Listen opens a non-blocking TCP socket listening on addr and
// returns its descriptor.
func Listen(addr string) (int, error) {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, errors.Wrapf(err, "coloop: resolve %q", addr)
	}

	sa, family := sockaddr(tcp)
	fd, err := socket(family)
	if err != nil {
		return -1, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "coloop: setsockopt")
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrapf(err, "coloop: bind %s", addr)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrapf(err, "coloop: listen %s", addr)
	}
	return fd, nil
}

// LocalAddr returns the address fd is bound to.
func LocalAddr(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, errors.Wrapf(err, "coloop: getsockname fd %d", fd)
	}
	return tcpAddr(sa), nil
}

// Close closes a descriptor. Any task still waiting on it must not be
// left registered: the next readiness check would fail.
func Close(fd int) error {
	return errors.Wrapf(unix.Close(fd), "coloop: close fd %d", fd)
}

// Accept waits until the listening socket fd has a pending connection
// and accepts it. The returned descriptor is non-blocking.
func (t *Task) Accept(fd int) (int, *net.TCPAddr, error) {
	for {
		t.WaitRead(fd)

		nfd, sa, err := unix.Accept(fd)
		switch err {
		case nil:
		case unix.EAGAIN, unix.EINTR, unix.ECONNABORTED:
			continue
		default:
			return -1, nil, errors.Wrapf(err, "coloop: accept fd %d", fd)
		}

		unix.CloseOnExec(nfd)
		if err := unix.SetNonblock(nfd, true); err != nil {
			_ = unix.Close(nfd)
			return -1, nil, errors.Wrapf(err, "coloop: set nonblock fd %d", nfd)
		}
		return nfd, tcpAddr(sa), nil
	}
}

// Connect opens a non-blocking TCP connection to addr, parking the
// task until the handshake completes.
func (t *Task) Connect(addr string) (int, error) {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, errors.Wrapf(err, "coloop: resolve %q", addr)
	}

	sa, family := sockaddr(tcp)
	fd, err := socket(family)
	if err != nil {
		return -1, err
	}

	err = unix.Connect(fd, sa)
	if err == unix.EINPROGRESS {
		t.WaitWrite(fd)
		var soerr int
		soerr, err = unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err == nil && soerr != 0 {
			err = unix.Errno(soerr)
		}
	}
	if err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrapf(err, "coloop: connect %s", addr)
	}
	return fd, nil
}

// Recv waits until fd is readable and reads into p. A zero count
// with a nil error means the peer closed the connection.
func (t *Task) Recv(fd int, p []byte) (int, error) {
	for {
		t.WaitRead(fd)

		n, err := unix.Read(fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EAGAIN, unix.EINTR:
			continue
		default:
			return 0, errors.Wrapf(err, "coloop: recv fd %d", fd)
		}
	}
}

// Send waits until fd is writable and writes p, returning how many
// bytes the kernel accepted.
func (t *Task) Send(fd int, p []byte) (int, error) {
	for {
		t.WaitWrite(fd)

		n, err := unix.Write(fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EAGAIN, unix.EINTR:
			continue
		default:
			return 0, errors.Wrapf(err, "coloop: send fd %d", fd)
		}
	}
}

// SendAll sends all of p, suspending as often as needed.
func (t *Task) SendAll(fd int, p []byte) error {
	for len(p) > 0 {
		n, err := t.Send(fd, p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func socket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errors.Wrap(err, "coloop: socket")
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "coloop: set nonblock")
	}
	return fd, nil
}

func sockaddr(addr *net.TCPAddr) (unix.Sockaddr, int) {
	if addr.IP == nil {
		return &unix.SockaddrInet4{Port: addr.Port}, unix.AF_INET
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		return &unix.SockaddrInet4{Port: addr.Port, Addr: [4]byte(ip4)}, unix.AF_INET
	}
	return &unix.SockaddrInet6{Port: addr.Port, Addr: [16]byte(addr.IP.To16())}, unix.AF_INET6
}

func tcpAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]).To16(), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	}
	return nil
}

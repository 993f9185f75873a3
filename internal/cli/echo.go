//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package cli

import (
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/webriots/coloop"
)

func newEchoCmd() *cobra.Command {
	var addr, prefix string
	var maxConns int

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a TCP echo server",
		Long: `Accepts TCP connections and answers every chunk of data with the
same data behind a prefix. Each connection is served by its own task.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lfd, err := coloop.Listen(addr)
			if err != nil {
				return err
			}
			defer coloop.Close(lfd)

			local, err := coloop.LocalAddr(lfd)
			if err != nil {
				return err
			}
			logger.Info("listening", "addr", local)

			s := newScheduler()
			s.Spawn(cmd.Context(), func(_ context.Context, t *coloop.Task) error {
				return serveEcho(t, lfd, []byte(prefix), maxConns)
			})
			return s.Run()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":30000", "Listen address")
	cmd.Flags().StringVar(&prefix, "prefix", "Got:", "Prefix prepended to every reply")
	cmd.Flags().IntVar(&maxConns, "max-conns", 0, "Stop accepting after this many connections (0 = unlimited)")

	return cmd
}

// serveEcho accepts connections on lfd and spawns a handler task for
// each one.
func serveEcho(t *coloop.Task, lfd int, prefix []byte, maxConns int) error {
	for n := 0; maxConns == 0 || n < maxConns; n++ {
		cfd, peer, err := t.Accept(lfd)
		if err != nil {
			return err
		}

		id := uuid.New()
		logger.Info("connection opened", "conn", id, "peer", peer)

		t.Go(func(_ context.Context, t *coloop.Task) error {
			return echoConn(t, cfd, prefix, id, peer)
		})
	}
	return nil
}

func echoConn(t *coloop.Task, fd int, prefix []byte, id uuid.UUID, peer *net.TCPAddr) error {
	defer func() {
		_ = coloop.Close(fd)
		logger.Info("connection closed", "conn", id, "peer", peer)
	}()

	buf := make([]byte, 10000)
	reply := make([]byte, 0, len(prefix)+len(buf))
	for {
		n, err := t.Recv(fd, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		logger.Debug("echo", "conn", id, "bytes", n)
		reply = append(append(reply[:0], prefix...), buf[:n]...)
		if err := t.SendAll(fd, reply); err != nil {
			return err
		}
	}
}

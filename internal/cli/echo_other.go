//go:build !darwin && !dragonfly && !freebsd && !linux && !netbsd && !openbsd

package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newEchoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "echo",
		Short: "Run a TCP echo server (unsupported on this platform)",
		RunE: func(*cobra.Command, []string) error {
			return errors.New("echo: descriptor readiness is not supported on this platform")
		},
	}
}

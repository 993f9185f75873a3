package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/webriots/coloop"
)

func newRaceCmd() *cobra.Command {
	var tasks int
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "race",
		Short: "Start tasks sleeping for the same delay and print their wake order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newScheduler()
			out := cmd.OutOrStdout()

			for i := 0; i < tasks; i++ {
				s.Spawn(cmd.Context(), func(_ context.Context, t *coloop.Task) error {
					t.Sleep(delay)
					fmt.Fprintf(out, "task %d woke\n", i)
					return nil
				})
			}
			return s.Run()
		},
	}

	cmd.Flags().IntVar(&tasks, "tasks", 5, "Number of tasks")
	cmd.Flags().DurationVar(&delay, "delay", 100*time.Millisecond, "Sleep duration shared by every task")

	return cmd
}

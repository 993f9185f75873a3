package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/webriots/coloop"
)

func newCountdownCmd() *cobra.Command {
	var count int
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "countdown",
		Short: "Run a producer and a consumer connected by a queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return errors.Errorf("countdown: negative count %d", count)
			}
			s := newScheduler()
			countdown(cmd.Context(), s, cmd.OutOrStdout(), count, interval)
			return s.Run()
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "Number of items to produce")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Pause between produced items")

	return cmd
}

// countdown spawns a producer that puts count items on a queue,
// sleeping between them, and a consumer that prints them until the
// queue is closed.
func countdown(ctx context.Context, s *coloop.Scheduler, out io.Writer, count int, interval time.Duration) {
	var q coloop.Queue[int]

	s.Spawn(ctx, func(_ context.Context, t *coloop.Task) error {
		for n := 0; n < count; n++ {
			fmt.Fprintln(out, "Producing", n)
			if err := q.Put(n); err != nil {
				return err
			}
			t.Sleep(interval)
		}
		fmt.Fprintln(out, "Producer done")
		q.Close()
		return nil
	})

	s.Spawn(ctx, func(_ context.Context, t *coloop.Task) error {
		for {
			item, err := q.Get(t)
			if errors.Is(err, coloop.ErrQueueClosed) {
				fmt.Fprintln(out, "Consumer done")
				return nil
			}
			fmt.Fprintln(out, "Consuming", item)
		}
	})
}

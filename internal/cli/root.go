// Package cli implements the coloop command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/webriots/coloop"
	"github.com/webriots/coloop/internal/logging"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger = slog.New(slog.DiscardHandler)
)

// NewRootCmd creates the root cobra command for the coloop binary.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coloop",
		Short: "Demos for the coloop cooperative scheduler",
		Long: "coloop runs small programs on a single-threaded cooperative scheduler:\n" +
			"an echo server, a producer/consumer countdown and a timer race.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	addLoggingFlags(root.PersistentFlags())

	root.AddCommand(
		newEchoCmd(),
		newCountdownCmd(),
		newRaceCmd(),
	)

	return root
}

func addLoggingFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	fs.StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
}

// newScheduler returns a scheduler that reports task failures to the
// command logger.
func newScheduler() *coloop.Scheduler {
	return coloop.New(coloop.WithLogger(logger))
}

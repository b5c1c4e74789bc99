package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/watch"
)

var (
	watchDebounce time.Duration
	watchFor      time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Report drift of a file's records every time it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if watchFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchFor)
			defer cancel()
		}

		cmd.Printf("Watching %s (Ctrl+C to stop)\n", doc.Path())
		return watch.Watch(ctx, doc.Path(), watchDebounce, eng.log, func(ev watch.Event) {
			if ev.Removed {
				cmd.Printf("%s  removed\n", ev.Time.Format(time.TimeOnly))
				return
			}
			if err := doc.Reload(); err != nil {
				eng.log.Warn().Err(err).Str("file", ev.Path).Msg("reload failed")
				return
			}
			d, err := eng.toggles.Diagnose(doc)
			if err != nil {
				eng.log.Warn().Err(err).Str("file", ev.Path).Msg("diagnose failed")
				return
			}
			cmd.Printf("%s  ", ev.Time.Format(time.TimeOnly))
			printDiagnosis(cmd, d)
		})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "coalesce changes arriving within this window")
	watchCmd.Flags().DurationVar(&watchFor, "for", 0, "stop after this long (default: until interrupted)")
	rootCmd.AddCommand(watchCmd)
}

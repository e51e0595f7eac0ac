package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avion00/buy2rent-vendormail/internal/lockfile"
)

var (
	watchInterval  int
	watchMaxErrors int
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one poll cycle over the shared mailbox",
	Long: `Fetches unread messages from the monitored folder, correlates each
back to its issue, records vendor replies, and queues AI reply drafts for
approval. Safe to re-run: already-recorded messages dedupe on message id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		release, err := lockfile.Acquire(a.cfg.Poll.LockPath)
		if err != nil {
			if errors.Is(err, lockfile.ErrLocked) {
				// Another instance is mid-cycle. Backing off is the
				// point of the lock, so this is a clean exit.
				a.logger.Warn("another poll is running; exiting",
					"lock", a.cfg.Poll.LockPath)
				return nil
			}
			return err
		}
		defer func() { _ = release() }()

		results, err := a.monitor.ProcessInbox(cmd.Context())
		if err != nil {
			return err
		}

		for _, r := range results {
			fmt.Printf("%-14s issue=%s message=%s\n", r.Outcome, r.IssueID, r.MessageID)
		}
		fmt.Printf("processed %d message(s)\n", len(results))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the shared mailbox continuously",
	Long: `Runs poll cycles at a fixed interval until interrupted or until the
configured number of consecutive cycles fail. An interrupt finishes the
in-flight cycle before exiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		release, err := lockfile.Acquire(a.cfg.Poll.LockPath)
		if err != nil {
			if errors.Is(err, lockfile.ErrLocked) {
				a.logger.Warn("another poll is running; exiting",
					"lock", a.cfg.Poll.LockPath)
				return nil
			}
			return err
		}
		defer func() { _ = release() }()

		interval := a.cfg.Poll.IntervalSec
		if watchInterval > 0 {
			interval = watchInterval
		}
		maxErrors := a.cfg.Poll.MaxConsecutiveErrors
		if watchMaxErrors > 0 {
			maxErrors = watchMaxErrors
		}

		ctx, stop := signal.NotifyContext(
			context.Background(), syscall.SIGINT, syscall.SIGTERM,
		)
		defer stop()

		return a.monitor.Loop(
			ctx, time.Duration(interval)*time.Second, maxErrors,
		)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0,
		"seconds between poll cycles (overrides config)")
	watchCmd.Flags().IntVar(&watchMaxErrors, "max-errors", 0,
		"consecutive failed cycles before stopping (overrides config)")

	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(watchCmd)
}

package monitor

import (
	"context"
	"fmt"
	"time"
)

// Loop runs poll cycles at a fixed interval until the context is
// cancelled or too many consecutive cycles fail. A cancellation observed
// mid-cycle lets the in-flight cycle finish (partial writes are worse
// than a late exit) and skips the next one.
//
// The return is nil on graceful stop and non-nil only when the
// consecutive-error threshold halts the loop.
func (m *Monitor) Loop(
	ctx context.Context,
	interval time.Duration,
	maxConsecutiveErrors int,
) error {
	if interval <= 0 {
		interval = 120 * time.Second
	}
	if maxConsecutiveErrors <= 0 {
		maxConsecutiveErrors = 5
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveErrors := 0

	runCycle := func() {
		results, err := m.ProcessInbox(ctx)
		if err != nil {
			consecutiveErrors++
			m.logger.Error("poll cycle failed",
				"error", err,
				"consecutive_errors", consecutiveErrors)
			return
		}

		consecutiveErrors = 0
		if len(results) > 0 {
			counts := map[Outcome]int{}
			for _, r := range results {
				counts[r.Outcome]++
			}
			m.logger.Info("poll cycle complete",
				"messages", len(results),
				"drafted", counts[OutcomeDrafted],
				"duplicates", counts[OutcomeDuplicate],
				"skipped", counts[OutcomeSkipped])
		}
	}

	// First cycle immediately; a scheduled job should not sit idle for
	// a full interval before doing anything.
	runCycle()

	for {
		if consecutiveErrors >= maxConsecutiveErrors {
			return fmt.Errorf(
				"stopping after %d consecutive failed poll cycles",
				consecutiveErrors,
			)
		}

		select {
		case <-ctx.Done():
			m.logger.Info("poll loop stopping")
			return nil
		case <-ticker.C:
			runCycle()
		}
	}
}

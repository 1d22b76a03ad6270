package cli

import (
	"context"
	"time"
)

func dayDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// Sync replays queued changes now. Offline it only reports what is waiting.
func (a *App) Sync(ctx context.Context, _ []string) error {
	if !a.syncService.IsOnline() && !a.watcher.Check(ctx) {
		pending, err := a.syncService.Pending(ctx)
		if err != nil {
			printlnFn("Error:", err.Error())
			return err
		}
		printlnFn("Server unreachable,", len(pending), "change(s) waiting")
		return nil
	}

	rep, err := a.syncService.Flush(ctx)
	if err != nil {
		printlnFn("Sync failed:", err.Error())
		return err
	}
	if rep.Deferred {
		printlnFn("A sync is already running")
		return nil
	}
	printlnFn("Synced:", rep.Applied, "applied,", rep.Dropped, "dropped,", rep.Failed, "failed,", rep.Remaining, "remaining")
	return nil
}

// Status prints connectivity, the pending queue and the last completed sync.
func (a *App) Status(ctx context.Context, _ []string) error {
	printlnFn("Mode:        ", a.mode())
	if u := a.authService.CurrentUser(); u != nil {
		printlnFn("User:        ", displayName(u))
	}

	pending, err := a.syncService.Pending(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Pending:     ", len(pending))
	for _, op := range pending {
		line := []any{"  ", op.Seq, op.Kind, op.Entity, op.TargetID}
		if op.Attempts > 0 {
			line = append(line, "attempts:", op.Attempts, "last error:", op.LastError)
		}
		printlnFn(line...)
	}

	last, err := a.syncService.LastSync(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if last == nil {
		printlnFn("Last sync:    never")
	} else {
		printlnFn("Last sync:   ", last.Local().Format(time.DateTime))
	}
	return nil
}

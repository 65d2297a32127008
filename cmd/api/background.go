package main

import (
	"context"
	"errors"
	"time"

	"nightmap/internal/sources"
	"nightmap/internal/syncer"
)

// syncEvery runs one sync cycle right away and then one per interval until
// ctx is cancelled.
func (app *application) syncEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		q := sources.Query{Location: app.config.sync.location, Keyword: app.config.sync.keyword}

		app.runScheduledSync(ctx, q)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.runScheduledSync(ctx, q)
			}
		}
	}()
}

func (app *application) runScheduledSync(ctx context.Context, q sources.Query) {
	summary, err := app.syncer.RunSync(ctx, q)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			app.logger.Infow("scheduled sync skipped, a cycle is already running")
			return
		}
		app.logger.Errorf("Error running scheduled sync: %v", err)
		return
	}
	app.logger.Infof("Scheduled sync finished at %s: %d unique, %d inserted, %d updated, %d failed",
		time.Now().Format(time.RFC1123), summary.TotalUnique, summary.Inserted, summary.Updated, summary.Failed)
}

// pruneStaleTokensDaily drops push tokens that have not been refreshed in
// staleAfter.
func (app *application) pruneStaleTokensDaily(ctx context.Context, staleAfter time.Duration) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := app.store.PushTokens.PruneStaleTokens(ctx, staleAfter); err != nil {
					app.logger.Errorf("Error pruning stale push tokens: %v", err)
				}
			}
		}
	}()
}

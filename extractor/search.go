package extractor

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// ProcessSearch claims a search, fans its pending domains out over the
// crawl pool in slices of the concurrency limit and drives the search
// status transitions. Like CrawlDomain it reports nothing to the caller,
// the search row and the log carry the outcome.
func (e *Extractor) ProcessSearch(ctx context.Context, searchID int64, workerID string) {
	if err := e.runSearch(ctx, searchID, workerID); err != nil {
		e.logger.Error("error processing search", "search_id", searchID, "error", err)

		if dbErr := e.store.FailSearch(ctx, searchID); dbErr != nil {
			e.logger.Error("failed to mark search failed", "search_id", searchID, "error", dbErr)
		}
	}
}

func (e *Extractor) runSearch(ctx context.Context, searchID int64, workerID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v stack: %s", r, debug.Stack())
		}
	}()

	if err := e.store.StartSearch(ctx, searchID); err != nil {
		return fmt.Errorf("failed to claim search: %w", err)
	}

	domains, err := e.store.PendingDomains(ctx, searchID)
	if err != nil {
		return fmt.Errorf("failed to select pending domains: %w", err)
	}

	if len(domains) == 0 {
		e.logger.Warn("search has no pending domains", "search_id", searchID)
		return nil
	}

	e.logger.Info("processing search", "search_id", searchID, "worker_id", workerID, "domains", len(domains))

	for i := 0; i < len(domains); i += e.maxConcurrent {
		end := min(i+e.maxConcurrent, len(domains))

		g := new(errgroup.Group)

		for _, d := range domains[i:end] {
			g.Go(func() error {
				e.CrawlDomain(ctx, d.ID, d.URL, workerID)
				return nil
			})
		}

		_ = g.Wait()
	}

	if err := e.store.CompleteSearch(ctx, searchID); err != nil {
		return fmt.Errorf("failed to mark search completed: %w", err)
	}

	e.logger.Info("search completed", "search_id", searchID)

	return nil
}

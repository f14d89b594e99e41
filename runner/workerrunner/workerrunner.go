package workerrunner

import (
	"context"
	"database/sql"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/email-extractor/extractor"
	"github.com/sadewadee/email-extractor/mysql"
	"github.com/sadewadee/email-extractor/pkg/monitoring"
	"github.com/sadewadee/email-extractor/runner"
	"github.com/sadewadee/email-extractor/tlmt"
)

type workerrunner struct {
	cfg     *runner.Config
	db      *sql.DB
	store   *mysql.Store
	ext     *extractor.Extractor
	metrics *monitoring.MetricsCollector
}

func New(cfg *runner.Config) (runner.Runner, error) {
	db, err := mysql.Open(cfg.DatabaseConfig())
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetricsCollector()
	store := mysql.NewStore(db, mysql.WithMetrics(metrics))

	ext := extractor.New(store,
		extractor.WithMaxDepth(cfg.MaxDepth),
		extractor.WithMaxConcurrent(cfg.MaxConcurrent),
		extractor.WithFetcher(extractor.NewFetcher(cfg.Timeout, nil)),
		extractor.WithMetrics(metrics),
	)

	ans := workerrunner{
		cfg:     cfg,
		db:      db,
		store:   store,
		ext:     ext,
		metrics: metrics,
	}

	return &ans, nil
}

func (w *workerrunner) Run(ctx context.Context) error {
	if w.cfg.RunMode == runner.RunModeOnce {
		return w.runOnce(ctx)
	}

	egroup, ctx := errgroup.WithContext(ctx)

	sampler := monitoring.NewResourceSampler(w.metrics, 0, nil)

	egroup.Go(func() error {
		return sampler.Run(ctx)
	})

	alerts := monitoring.NewDefaultAlertManager(w.metrics, nil)

	egroup.Go(func() error {
		return alerts.Run(ctx)
	})

	if w.cfg.DashboardAddr != "" {
		dashboard := monitoring.NewDashboardServer(w.metrics, alerts, w.cfg.DashboardAddr, nil)

		egroup.Go(func() error {
			return dashboard.Start(ctx)
		})
	}

	egroup.Go(func() error {
		return w.logStats(ctx)
	})

	egroup.Go(func() error {
		return w.work(ctx)
	})

	return egroup.Wait()
}

func (w *workerrunner) Close(context.Context) error {
	return w.db.Close()
}

// work claims and processes searches until the context is cancelled. After
// finishing a search it pauses briefly before the next claim; when nothing
// is claimable it idles for the poll interval.
func (w *workerrunner) work(ctx context.Context) error {
	log.Printf("worker %s polling for searches", w.cfg.WorkerID)

	for {
		if ctx.Err() != nil {
			return nil
		}

		searchID, ok, err := w.store.NextSearch(ctx)
		if err != nil {
			log.Printf("error claiming next search: %v", err)

			if !w.sleep(ctx, w.cfg.PollInterval) {
				return nil
			}

			continue
		}

		if !ok {
			if !w.sleep(ctx, w.cfg.PollInterval) {
				return nil
			}

			continue
		}

		w.processSearch(ctx, searchID)

		if !w.sleep(ctx, time.Second) {
			return nil
		}
	}
}

// runOnce processes a single search and exits: the one named by SEARCH_ID
// when set, otherwise the oldest claimable one.
func (w *workerrunner) runOnce(ctx context.Context) error {
	searchID := w.cfg.SearchID

	if searchID == 0 {
		id, ok, err := w.store.NextSearch(ctx)
		if err != nil {
			return err
		}

		if !ok {
			log.Printf("no claimable search found")
			return nil
		}

		searchID = id
	}

	w.processSearch(ctx, searchID)

	return nil
}

func (w *workerrunner) processSearch(ctx context.Context, searchID int64) {
	t0 := time.Now().UTC()

	w.ext.ProcessSearch(ctx, searchID, w.cfg.WorkerID)

	w.metrics.UpdateDatabaseConnections(int64(w.db.Stats().OpenConnections))

	params := map[string]any{
		"search_id": searchID,
		"duration":  time.Now().UTC().Sub(t0).String(),
	}

	_ = runner.Telemetry().Send(ctx, tlmt.NewEvent("worker_search", params))

	log.Printf("search %d processed in %s", searchID, time.Now().UTC().Sub(t0))
}

func (w *workerrunner) logStats(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := w.metrics.GetPerformanceStats()

			log.Printf("stats: domains=%v pages=%v emails=%v fetch_errors=%v db_errors=%v",
				stats["domains_crawled"], stats["pages_crawled"], stats["emails_found"],
				stats["fetch_errors"], stats["db_errors"])
		}
	}
}

func (w *workerrunner) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

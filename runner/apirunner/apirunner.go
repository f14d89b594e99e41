package apirunner

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/email-extractor/extractor"
	"github.com/sadewadee/email-extractor/mysql"
	"github.com/sadewadee/email-extractor/pkg/monitoring"
	"github.com/sadewadee/email-extractor/runner"
	"github.com/sadewadee/email-extractor/tlmt"
	"github.com/sadewadee/email-extractor/web"
)

type apirunner struct {
	cfg     *runner.Config
	db      *sql.DB
	srv     *web.Server
	ext     *extractor.Extractor
	metrics *monitoring.MetricsCollector

	// queue carries ids of searches made runnable by an API call to the
	// dispatch loop, which owns the process lifetime context.
	queue chan int64
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

	ans := apirunner{
		cfg:     cfg,
		db:      db,
		ext:     ext,
		metrics: metrics,
		queue:   make(chan int64, 64),
	}

	svc := web.NewService(store, ans.enqueue)

	srv, err := web.New(svc, cfg.Addr, web.WithMetrics(metrics))
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	ans.srv = srv

	return &ans, nil
}

func (a *apirunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	sampler := monitoring.NewResourceSampler(a.metrics, 0, nil)

	egroup.Go(func() error {
		return sampler.Run(ctx)
	})

	alerts := monitoring.NewDefaultAlertManager(a.metrics, nil)

	egroup.Go(func() error {
		return alerts.Run(ctx)
	})

	if a.cfg.DashboardAddr != "" {
		dashboard := monitoring.NewDashboardServer(a.metrics, alerts, a.cfg.DashboardAddr, nil)

		egroup.Go(func() error {
			return dashboard.Start(ctx)
		})
	}

	egroup.Go(func() error {
		return a.dispatch(ctx)
	})

	egroup.Go(func() error {
		return a.srv.Start(ctx)
	})

	return egroup.Wait()
}

func (a *apirunner) Close(context.Context) error {
	return a.db.Close()
}

func (a *apirunner) enqueue(searchID int64) {
	select {
	case a.queue <- searchID:
	default:
		log.Printf("extraction queue full, search %d is left for a worker process", searchID)
	}
}

func (a *apirunner) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case searchID := <-a.queue:
			workerID := fmt.Sprintf("worker-%s", uuid.New().String()[:8])

			go a.processSearch(ctx, searchID, workerID)
		}
	}
}

func (a *apirunner) processSearch(ctx context.Context, searchID int64, workerID string) {
	t0 := time.Now().UTC()

	a.ext.ProcessSearch(ctx, searchID, workerID)

	params := map[string]any{
		"search_id": searchID,
		"duration":  time.Now().UTC().Sub(t0).String(),
	}

	_ = runner.Telemetry().Send(ctx, tlmt.NewEvent("api_search", params))

	log.Printf("search %d processed by %s in %s", searchID, workerID, time.Now().UTC().Sub(t0))
}

package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/perfsync/perfsync/internal/fetcher"
	"github.com/perfsync/perfsync/internal/model"
	"github.com/perfsync/perfsync/internal/pipeline"
	"github.com/perfsync/perfsync/internal/store"
	"github.com/perfsync/perfsync/pkg/performance"
)

// syncEnv holds the pool, fetcher, and policy options shared by the sync,
// report, dedup, and serve commands.
type syncEnv struct {
	Pool  *pgxpool.Pool
	Fetch fetcher.Fetcher
	Opts  pipeline.Options
}

// Close releases resources held by the environment.
func (e *syncEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// initEnv connects the pool, applies migrations, and builds the artifact
// fetcher. Callers should defer env.Close().
func initEnv(ctx context.Context) (*syncEnv, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is not configured (PERFSYNC_STORE_DATABASE_URL)")
	}

	pool, err := store.NewPool(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	fetch := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      time.Duration(cfg.Sync.DownloadTimeoutSecs) * time.Second,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})

	return &syncEnv{
		Pool:  pool,
		Fetch: fetch,
		Opts: pipeline.Options{
			PollInterval: time.Duration(cfg.Sync.PollIntervalSecs) * time.Second,
			PollTimeout:  time.Duration(cfg.Sync.PollTimeoutSecs) * time.Second,
			TempDir:      cfg.Sync.TempDir,
		},
	}, nil
}

// vendorClient builds a performance client for one account's credentials
// using the configured endpoints and request timeout.
func vendorClient(cred performance.Credential) performance.Client {
	opts := []performance.Option{
		performance.WithBaseURL(cfg.Vendor.BaseURL),
		performance.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Vendor.RequestTimeoutSecs) * time.Second,
		}),
	}
	if cfg.Vendor.TokenURL != "" {
		opts = append(opts, performance.WithTokenURL(cfg.Vendor.TokenURL))
	}
	return performance.NewClient(cred, opts...)
}

// parseJobs expands --date-from/--date-to/--types flags into the job list
// every account processes.
func parseJobs(dateFrom, dateTo, types string) ([]model.Job, error) {
	from, err := time.Parse("2006-01-02", dateFrom)
	if err != nil {
		return nil, eris.Wrapf(err, "parse --date-from %q", dateFrom)
	}
	to, err := time.Parse("2006-01-02", dateTo)
	if err != nil {
		return nil, eris.Wrapf(err, "parse --date-to %q", dateTo)
	}
	if to.Before(from) {
		return nil, eris.Errorf("--date-to %s is before --date-from %s", dateTo, dateFrom)
	}

	var jobs []model.Job
	for _, t := range strings.Split(types, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		jobs = append(jobs, model.Job{DateFrom: from, DateTo: to, Type: model.ReportType(t)})
	}
	if len(jobs) == 0 {
		return nil, eris.New("no report types specified")
	}
	return jobs, nil
}

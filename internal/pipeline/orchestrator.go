package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/perfsync/perfsync/internal/db"
	"github.com/perfsync/perfsync/internal/fetcher"
	"github.com/perfsync/perfsync/internal/loader"
	"github.com/perfsync/perfsync/internal/model"
	"github.com/perfsync/perfsync/pkg/performance"
)

// ClientFactory builds a vendor client for one account's credentials.
// Injected so tests can substitute a fake vendor.
type ClientFactory func(cred performance.Credential) performance.Client

// Orchestrator fans a job list out over many accounts with a bounded worker
// pool, then runs one deduplication pass after every worker has finished.
type Orchestrator struct {
	pool      db.Pool
	fetch     fetcher.Fetcher
	newClient ClientFactory
	opts      Options
	workers   int
}

// NewOrchestrator creates an orchestrator. workers <= 0 uses the default
// pool size of 16.
func NewOrchestrator(pool db.Pool, fetch fetcher.Fetcher, newClient ClientFactory, opts Options, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 16
	}
	return &Orchestrator{
		pool:      pool,
		fetch:     fetch,
		newClient: newClient,
		opts:      opts,
		workers:   workers,
	}
}

// Sync processes every (account, job) pair: one worker per account, bounded
// by the pool size, jobs strictly ordered within an account. Per-job failures
// are logged and never abort sibling jobs or other workers. After all workers
// join, superseded duplicate rows are deleted from the reports table.
func (o *Orchestrator) Sync(ctx context.Context, accs []model.Account, jobs []model.Job) (*Summary, error) {
	if len(accs) == 0 {
		zap.L().Info("no active accounts to sync")
		return &Summary{}, nil
	}

	zap.L().Info("starting sync",
		zap.Int("accounts", len(accs)),
		zap.Int("jobs_per_account", len(jobs)),
		zap.Int("workers", o.workers),
	)

	var loaded, timedOut, failed, rows atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, acc := range accs {
		g.Go(func() error {
			runner := NewRunner(acc, o.newClient(performance.Credential{
				ClientID:     acc.ClientID,
				ClientSecret: acc.ClientSecret,
			}), o.fetch, o.pool, o.opts)

			log := zap.L().With(
				zap.String("component", "pipeline"),
				zap.Int64("account_id", acc.ID),
			)

			for _, job := range jobs {
				outcome, err := runner.RunJob(gctx, job)
				if err != nil {
					failed.Add(1)
					log.Error("report job failed",
						zap.String("date_from", job.DateFrom.Format(dateLayout)),
						zap.String("date_to", job.DateTo.Format(dateLayout)),
						zap.String("report_type", string(job.Type)),
						zap.String("kind", errorKind(err)),
						zap.Error(err),
					)
					continue // next job; never abort the worker
				}
				if outcome.State == model.JobTimedOut {
					timedOut.Add(1)
					continue
				}
				loaded.Add(1)
				rows.Add(outcome.Rows)
			}
			return nil // worker failures never propagate to siblings
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: sync")
	}

	// All workers have joined; the dedup pass never races an in-flight load.
	removed, err := db.DeleteDuplicates(ctx, o.pool, db.DedupConfig{
		Table:    loader.Table,
		Key:      loader.DedupKey,
		Sequence: "id",
	})
	if err != nil {
		zap.L().Error("dedup pass failed", zap.Error(err))
	}

	summary := &Summary{
		Accounts:          len(accs),
		JobsLoaded:        loaded.Load(),
		JobsTimedOut:      timedOut.Load(),
		JobsFailed:        failed.Load(),
		RowsLoaded:        rows.Load(),
		DuplicatesRemoved: removed,
	}

	zap.L().Info("sync complete",
		zap.Int("accounts", summary.Accounts),
		zap.Int64("jobs_loaded", summary.JobsLoaded),
		zap.Int64("jobs_timed_out", summary.JobsTimedOut),
		zap.Int64("jobs_failed", summary.JobsFailed),
		zap.Int64("rows_loaded", summary.RowsLoaded),
		zap.Int64("duplicates_removed", summary.DuplicatesRemoved),
	)
	return summary, nil
}

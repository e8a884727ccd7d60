// Package pipeline runs report jobs end to end: request, poll, download,
// load, and the post-run deduplication pass.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/perfsync/perfsync/internal/artifact"
	"github.com/perfsync/perfsync/internal/db"
	"github.com/perfsync/perfsync/internal/fetcher"
	"github.com/perfsync/perfsync/internal/loader"
	"github.com/perfsync/perfsync/internal/model"
	"github.com/perfsync/perfsync/pkg/performance"
)

const dateLayout = "2006-01-02"

// Options are the policy knobs the near-identical source pipelines differed
// in: polling cadence and the scratch location.
type Options struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	TempDir      string
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.PollInterval == 0 {
		out.PollInterval = 5 * time.Second
	}
	if out.PollTimeout == 0 {
		out.PollTimeout = 20 * time.Second
	}
	if out.TempDir == "" {
		out.TempDir = "/tmp/perfsync"
	}
	return out
}

// Runner processes one account's jobs sequentially. It owns that account's
// vendor client (and therefore its cached token); nothing is shared with
// other workers except the reports store.
type Runner struct {
	account model.Account
	client  performance.Client
	fetch   fetcher.Fetcher
	pool    db.Pool
	opts    Options
	log     *zap.Logger
}

// NewRunner creates a runner for one account.
func NewRunner(account model.Account, client performance.Client, fetch fetcher.Fetcher, pool db.Pool, opts Options) *Runner {
	return &Runner{
		account: account,
		client:  client,
		fetch:   fetch,
		pool:    pool,
		opts:    opts.withDefaults(),
		log: zap.L().With(
			zap.String("component", "pipeline"),
			zap.Int64("account_id", account.ID),
		),
	}
}

// RunJob executes one report job end to end. A timed-out poll is a soft
// outcome with a nil error; every other failure is returned to the caller,
// which logs it and moves on to the next job.
func (r *Runner) RunJob(ctx context.Context, job model.Job) (*Outcome, error) {
	jobID, err := r.client.RequestReport(ctx, performance.ReportRequest{
		DateFrom: job.DateFrom.Format(dateLayout),
		DateTo:   job.DateTo.Format(dateLayout),
		Type:     string(job.Type),
	})
	if err != nil {
		return nil, err
	}

	res, err := performance.Poll(ctx, r.client, jobID,
		performance.WithPollInterval(r.opts.PollInterval),
		performance.WithPollTimeout(r.opts.PollTimeout),
	)
	if err != nil {
		return nil, err
	}
	if res.State == performance.StateTimedOut {
		r.log.Warn("report not ready within polling budget, abandoning job",
			zap.String("job_id", jobID),
			zap.String("date_from", job.DateFrom.Format(dateLayout)),
			zap.String("date_to", job.DateTo.Format(dateLayout)),
			zap.String("report_type", string(job.Type)),
			zap.Int("attempts", res.Attempts),
		)
		return &Outcome{JobID: jobID, State: model.JobTimedOut}, nil
	}

	link, err := r.client.ReportLink(ctx, jobID)
	if err != nil {
		return nil, err
	}

	art, err := artifact.Fetch(ctx, r.fetch, link, r.opts.TempDir, jobID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := art.Close(); cerr != nil {
			r.log.Warn("scratch cleanup failed", zap.String("job_id", jobID), zap.Error(cerr))
		}
	}()

	outcome := &Outcome{JobID: jobID, State: model.JobReady}
	for _, file := range art.Files() {
		n, err := loader.Load(ctx, r.pool, file, r.account.ID)
		if err != nil {
			// The file's row set is dropped; remaining files still load.
			r.log.Error("bulk load failed, dropping file row set",
				zap.String("job_id", jobID),
				zap.String("file", file),
				zap.String("date_from", job.DateFrom.Format(dateLayout)),
				zap.String("date_to", job.DateTo.Format(dateLayout)),
				zap.String("report_type", string(job.Type)),
				zap.Error(err),
			)
			continue
		}
		outcome.Rows += n
		outcome.Files++
	}

	if outcome.Files == 0 && len(art.Files()) > 0 {
		return outcome, eris.Errorf("pipeline: job %s: no payload file loaded", jobID)
	}

	r.log.Info("report saved to store",
		zap.String("job_id", jobID),
		zap.String("date_from", job.DateFrom.Format(dateLayout)),
		zap.String("date_to", job.DateTo.Format(dateLayout)),
		zap.String("report_type", string(job.Type)),
		zap.Int64("rows", outcome.Rows),
		zap.Int("files", outcome.Files),
	)
	return outcome, nil
}

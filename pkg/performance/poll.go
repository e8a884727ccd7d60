package performance

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 20 * time.Second
)

// PollState is the terminal outcome of a poll loop.
type PollState string

const (
	// StateReady means the vendor finished building the report.
	StateReady PollState = "ready"
	// StateTimedOut means the polling budget ran out while the job was
	// still pending. This is a soft outcome: the job is abandoned, not
	// treated as an error.
	StateTimedOut PollState = "timed_out"
)

// PollResult is the outcome of a completed poll loop.
type PollResult struct {
	State    PollState
	Attempts int
}

// TimedOutError is returned instead of the soft StateTimedOut result when
// WithRaiseOnTimeout is set. Used by synchronous callers that cannot abandon.
type TimedOutError struct {
	JobID    string
	Attempts int
}

func (e *TimedOutError) Error() string {
	return "performance: report job " + e.JobID + " not ready within polling budget"
}

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval time.Duration
	timeout  time.Duration
	raise    bool
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		interval: defaultPollInterval,
		timeout:  defaultPollTimeout,
	}
}

// WithPollInterval overrides the fixed interval between status polls.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.interval = d
	}
}

// WithPollTimeout overrides the total polling budget.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// WithRaiseOnTimeout makes an exhausted budget return *TimedOutError instead
// of the soft StateTimedOut result.
func WithRaiseOnTimeout() PollOption {
	return func(c *pollConfig) {
		c.raise = true
	}
}

// Poll polls ReportStatus at a fixed interval until the job is ready, the
// vendor reports an error, or the polling budget is exhausted. With the
// default 5s interval and 20s budget a forever-pending job is polled exactly
// 4 times. A vendor-reported error surfaces immediately as *JobFailedError;
// an exhausted budget is a soft StateTimedOut outcome with a nil error.
func Poll(ctx context.Context, client Client, jobID string, opts ...PollOption) (*PollResult, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	attempts := 0
	for elapsed := time.Duration(0); elapsed < cfg.timeout; elapsed += cfg.interval {
		status, err := client.ReportStatus(ctx, jobID)
		if err != nil {
			return nil, eris.Wrapf(err, "performance: poll job %s", jobID)
		}
		attempts++

		if status.State == stateError {
			return nil, &JobFailedError{JobID: jobID, Reason: status.Error}
		}
		if status.Ready() {
			return &PollResult{State: StateReady, Attempts: attempts}, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "performance: poll job %s cancelled", jobID)
		case <-time.After(cfg.interval):
		}
	}

	if cfg.raise {
		return nil, &TimedOutError{JobID: jobID, Attempts: attempts}
	}
	return &PollResult{State: StateTimedOut, Attempts: attempts}, nil
}

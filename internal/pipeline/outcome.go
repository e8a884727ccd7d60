package pipeline

import (
	"errors"

	"github.com/perfsync/perfsync/internal/artifact"
	"github.com/perfsync/perfsync/internal/model"
	"github.com/perfsync/perfsync/pkg/performance"
)

// Outcome describes how one job ended.
type Outcome struct {
	JobID string
	State model.JobState
	Rows  int64 // rows loaded into the store
	Files int   // payload files loaded
}

// Summary aggregates a whole orchestration cycle.
type Summary struct {
	Accounts          int
	JobsLoaded        int64
	JobsTimedOut      int64
	JobsFailed        int64
	RowsLoaded        int64
	DuplicatesRemoved int64
}

// errorKind labels a job failure for logging. There is no structured error
// aggregation across the run; the label plus job context is the whole record.
func errorKind(err error) string {
	var (
		authErr    *performance.AuthError
		apiErr     *performance.APIError
		jobErr     *performance.JobFailedError
		corruptErr *artifact.CorruptArchiveError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &jobErr):
		return "job_failed"
	case errors.As(err, &apiErr):
		return "request"
	case errors.As(err, &corruptErr):
		return "archive_corrupt"
	default:
		return "request"
	}
}

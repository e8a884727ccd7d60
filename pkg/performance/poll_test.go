package performance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client for testing the poll loop.
type mockClient struct {
	statusFunc func(ctx context.Context, jobID string) (*StatusResponse, error)
}

func (m *mockClient) RequestReport(context.Context, ReportRequest) (string, error) {
	return "", nil
}

func (m *mockClient) ReportStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	return m.statusFunc(ctx, jobID)
}

func (m *mockClient) ReportLink(context.Context, string) (string, error) {
	return "", nil
}

func TestPoll_ReadyImmediately(t *testing.T) {
	mock := &mockClient{
		statusFunc: func(ctx context.Context, jobID string) (*StatusResponse, error) {
			return &StatusResponse{State: "OK"}, nil
		},
	}

	res, err := Poll(context.Background(), mock, "job-1",
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, StateReady, res.State)
	assert.Equal(t, 1, res.Attempts)
}

func TestPoll_ReadyAfterPending(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		statusFunc: func(ctx context.Context, jobID string) (*StatusResponse, error) {
			if calls.Add(1) < 3 {
				return &StatusResponse{State: "IN_PROGRESS"}, nil
			}
			return &StatusResponse{State: "OK"}, nil
		},
	}

	res, err := Poll(context.Background(), mock, "job-2",
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, StateReady, res.State)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPoll_PendingForeverTimesOutSoftly(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		statusFunc: func(ctx context.Context, jobID string) (*StatusResponse, error) {
			calls.Add(1)
			return &StatusResponse{State: "IN_PROGRESS"}, nil
		},
	}

	res, err := Poll(context.Background(), mock, "job-3",
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(20*time.Millisecond),
	)
	require.NoError(t, err, "an exhausted budget is a soft outcome, not an error")
	assert.Equal(t, StateTimedOut, res.State)
	// ceil(20/5) status calls before the budget runs out.
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, 4, res.Attempts)
}

func TestPoll_VendorErrorShortCircuits(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		statusFunc: func(ctx context.Context, jobID string) (*StatusResponse, error) {
			calls.Add(1)
			return &StatusResponse{State: "ERROR", Error: "X"}, nil
		},
	}

	_, err := Poll(context.Background(), mock, "job-4",
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(50*time.Millisecond),
	)
	require.Error(t, err)

	var jobErr *JobFailedError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "X", jobErr.Reason)
	assert.Equal(t, int32(1), calls.Load(), "no further polling after a vendor-reported error")
}

func TestPoll_RaiseOnTimeout(t *testing.T) {
	mock := &mockClient{
		statusFunc: func(ctx context.Context, jobID string) (*StatusResponse, error) {
			return &StatusResponse{State: "IN_PROGRESS"}, nil
		},
	}

	_, err := Poll(context.Background(), mock, "job-5",
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(20*time.Millisecond),
		WithRaiseOnTimeout(),
	)
	require.Error(t, err)

	var timedOut *TimedOutError
	require.ErrorAs(t, err, &timedOut)
	assert.Equal(t, 4, timedOut.Attempts)
}

func TestPoll_ContextCancelled(t *testing.T) {
	mock := &mockClient{
		statusFunc: func(ctx context.Context, jobID string) (*StatusResponse, error) {
			return &StatusResponse{State: "IN_PROGRESS"}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Poll(ctx, mock, "job-6",
		WithPollInterval(10*time.Millisecond),
		WithPollTimeout(time.Second),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

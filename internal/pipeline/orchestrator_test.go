package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfsync/perfsync/internal/loader"
	"github.com/perfsync/perfsync/internal/model"
	"github.com/perfsync/perfsync/pkg/performance"
)

// scriptedFactory hands each account a client keyed by its client_id.
func scriptedFactory(clients map[string]*fakeClient) ClientFactory {
	return func(cred performance.Credential) performance.Client {
		return clients[cred.ClientID]
	}
}

func expectDedup(mock pgxmock.PgxPoolIface, removed int64) {
	mock.ExpectExec(`DELETE FROM "reports"`).
		WillReturnResult(pgxmock.NewResult("DELETE", removed))
}

func TestSync(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{loader.Table}, loader.CopyColumns()).WillReturnResult(2)
	expectDedup(mock, 1)

	clients := map[string]*fakeClient{
		"client-a": readyClient("https://disk.example/report.csv"),
	}
	o := NewOrchestrator(mock, &fakeFetcher{payload: reportCSV(2)}, scriptedFactory(clients), fastOpts(t), 4)

	summary, err := o.Sync(context.Background(),
		[]model.Account{{ID: 1, ClientID: "client-a", ClientSecret: "s"}},
		[]model.Job{testJob(t)},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.JobsLoaded)
	assert.Equal(t, int64(2), summary.RowsLoaded)
	assert.Equal(t, int64(1), summary.DuplicatesRemoved)
	assert.NoError(t, mock.ExpectationsWereMet(), "dedup runs after every worker joins")
}

func TestSync_WorkerIsolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Workers load concurrently, so store calls arrive in any order.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectCopyFrom(pgx.Identifier{loader.Table}, loader.CopyColumns()).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{loader.Table}, loader.CopyColumns()).WillReturnResult(2)
	expectDedup(mock, 3)

	// Distinct job ids keep each worker in its own scratch directory.
	clients := map[string]*fakeClient{
		"client-a": {jobID: "job-a", status: &performance.StatusResponse{State: "OK"}, link: "https://disk.example/report.csv"},
		"client-b": {jobID: "job-b", status: &performance.StatusResponse{State: "IN_PROGRESS"}},
		"client-c": {jobID: "job-c", status: &performance.StatusResponse{State: "OK"}, link: "https://disk.example/report.csv"},
	}
	o := NewOrchestrator(mock, &fakeFetcher{payload: reportCSV(2)}, scriptedFactory(clients), fastOpts(t), 4)

	summary, err := o.Sync(context.Background(),
		[]model.Account{
			{ID: 1, ClientID: "client-a", ClientSecret: "s"},
			{ID: 2, ClientID: "client-b", ClientSecret: "s"},
			{ID: 3, ClientID: "client-c", ClientSecret: "s"},
		},
		[]model.Job{testJob(t)},
	)
	require.NoError(t, err)

	// One account's stalled report never blocks its siblings.
	assert.Equal(t, 3, summary.Accounts)
	assert.Equal(t, int64(2), summary.JobsLoaded)
	assert.Equal(t, int64(1), summary.JobsTimedOut)
	assert.Equal(t, int64(0), summary.JobsFailed)
	assert.Equal(t, int64(4), summary.RowsLoaded)
	assert.Equal(t, int64(3), summary.DuplicatesRemoved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSync_JobFailureDoesNotAbortWorker(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.MatchExpectationsInOrder(false)
	mock.ExpectCopyFrom(pgx.Identifier{loader.Table}, loader.CopyColumns()).WillReturnResult(2)
	expectDedup(mock, 0)

	clients := map[string]*fakeClient{
		"client-a": {requestErr: fmt.Errorf("401 unauthorized")},
		"client-b": readyClient("https://disk.example/report.csv"),
	}
	o := NewOrchestrator(mock, &fakeFetcher{payload: reportCSV(2)}, scriptedFactory(clients), fastOpts(t), 2)

	summary, err := o.Sync(context.Background(),
		[]model.Account{
			{ID: 1, ClientID: "client-a", ClientSecret: "s"},
			{ID: 2, ClientID: "client-b", ClientSecret: "s"},
		},
		[]model.Job{testJob(t)},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.JobsFailed)
	assert.Equal(t, int64(1), summary.JobsLoaded)
}

func TestSync_NoAccounts(t *testing.T) {
	o := NewOrchestrator(nil, &fakeFetcher{}, scriptedFactory(nil), Options{}, 0)

	summary, err := o.Sync(context.Background(), nil, []model.Job{testJob(t)})
	require.NoError(t, err)
	assert.Equal(t, &Summary{}, summary)
}

func TestSync_DedupFailureIsLoggedNotFatal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{loader.Table}, loader.CopyColumns()).WillReturnResult(1)
	mock.ExpectExec(`DELETE FROM "reports"`).WillReturnError(fmt.Errorf("deadlock detected"))

	clients := map[string]*fakeClient{
		"client-a": readyClient("https://disk.example/report.csv"),
	}
	o := NewOrchestrator(mock, &fakeFetcher{payload: reportCSV(1)}, scriptedFactory(clients), fastOpts(t), 1)

	summary, err := o.Sync(context.Background(),
		[]model.Account{{ID: 1, ClientID: "client-a", ClientSecret: "s"}},
		[]model.Job{testJob(t)},
	)
	require.NoError(t, err, "a failed dedup pass never invalidates the loaded rows")
	assert.Equal(t, int64(1), summary.JobsLoaded)
	assert.Equal(t, int64(0), summary.DuplicatesRemoved)
}

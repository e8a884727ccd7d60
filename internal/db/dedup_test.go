package db

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportsDedup() DedupConfig {
	return DedupConfig{
		Table:    "reports",
		Key:      []string{"page_type", "sku", "date", "account_id"},
		Sequence: "id",
	}
}

func TestDeleteDuplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM "reports"`).WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := DeleteDuplicates(context.Background(), mock, reportsDedup())
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDuplicates_Idempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// First pass removes the superseded rows, second pass finds none.
	mock.ExpectExec(`DELETE FROM "reports"`).WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec(`DELETE FROM "reports"`).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	n, err := DeleteDuplicates(context.Background(), mock, reportsDedup())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = DeleteDuplicates(context.Background(), mock, reportsDedup())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDuplicates_KeepsHighestSequence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// The window must order by the sequence column descending so the most
	// recently inserted row in each partition survives.
	mock.ExpectExec(`PARTITION BY "page_type", "sku", "date", "account_id" ORDER BY "id" DESC`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	_, err = DeleteDuplicates(context.Background(), mock, reportsDedup())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDuplicates_NoKey(t *testing.T) {
	_, err := DeleteDuplicates(context.TODO(), nil, DedupConfig{Table: "reports", Sequence: "id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key columns specified")
}

func TestDeleteDuplicates_NoSequence(t *testing.T) {
	_, err := DeleteDuplicates(context.TODO(), nil, DedupConfig{Table: "reports", Key: []string{"sku"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sequence column specified")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"reports", `"reports"`},
		{"public.reports", `"public"."reports"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

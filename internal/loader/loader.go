package loader

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/perfsync/perfsync/internal/db"
)

// Load parses one tabular payload file and bulk-inserts its rows into the
// reports table, tagged with the owning account id. Every input row becomes
// exactly one stored row; on a store failure the whole row set for the file
// is dropped and the error returned, never retried row by row.
func Load(ctx context.Context, pool db.Pool, path string, accountID int64) (int64, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return 0, err
	}

	rows := make([][]any, 0, len(records))
	for i, record := range records {
		row, err := transformRow(record, accountID)
		if err != nil {
			return 0, eris.Wrapf(err, "loader: %s row %d", filepath.Base(path), i+1)
		}
		rows = append(rows, row)
	}

	n, err := db.CopyFromBatches(ctx, pool, Table, CopyColumns(), rows, 0)
	if err != nil {
		return 0, err
	}

	zap.L().Debug("payload file loaded",
		zap.String("component", "loader"),
		zap.String("file", filepath.Base(path)),
		zap.Int64("rows", n),
		zap.Int64("account_id", accountID),
	)
	return n, nil
}

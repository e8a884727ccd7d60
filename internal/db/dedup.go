package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// DedupConfig defines the parameters for a duplicate-removal pass.
type DedupConfig struct {
	Table    string   // target table (e.g., "reports")
	Key      []string // columns forming the business key
	Sequence string   // insertion-sequence column; the highest value wins
}

// DeleteDuplicates removes superseded rows from a table. Rows are partitioned
// by the business key, the row with the highest sequence value in each
// partition is kept, and all others are deleted. Running it again on an
// already-clean table deletes nothing.
func DeleteDuplicates(ctx context.Context, pool Pool, cfg DedupConfig) (int64, error) {
	if len(cfg.Key) == 0 {
		return 0, eris.New("db: dedup: no key columns specified")
	}
	if cfg.Sequence == "" {
		return 0, eris.New("db: dedup: no sequence column specified")
	}

	table := sanitizeTable(cfg.Table)
	deleteSQL := fmt.Sprintf(
		`DELETE FROM %s
		  WHERE ctid IN (
		        SELECT ctid
		          FROM (SELECT ctid,
		                       row_number() OVER (PARTITION BY %s ORDER BY %s DESC) AS row_num
		                  FROM %s) t
		         WHERE t.row_num > 1)`,
		table,
		quoteAndJoin(cfg.Key),
		pgx.Identifier{cfg.Sequence}.Sanitize(),
		table,
	)

	tag, err := pool.Exec(ctx, deleteSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: dedup: delete from %s", cfg.Table)
	}

	return tag.RowsAffected(), nil
}

// sanitizeTable handles schema-qualified table names like "public.reports".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

package loader

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Accepted layouts for the report date column. The vendor usually ships ISO
// dates; older exports use the dotted Russian layout.
var dateLayouts = []string{"2006-01-02", "02.01.2006"}

// convertCell converts one raw cell to the COPY value for its column kind.
// Empty cells become NULL.
func convertCell(raw string, kind ColumnKind) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	switch kind {
	case KindText:
		return s, nil

	case KindBigint:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// Some numeric exports carry a float rendering of whole numbers.
			f, ferr := parseFloat(s)
			if ferr != nil {
				return nil, eris.Wrapf(err, "loader: parse bigint %q", s)
			}
			return int64(f), nil
		}
		return n, nil

	case KindFloat:
		f, err := parseFloat(s)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: parse float %q", s)
		}
		return f, nil

	case KindDate:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return d, nil
			}
		}
		return nil, eris.Errorf("loader: parse date %q", s)
	}

	return nil, eris.Errorf("loader: unknown column kind %d", kind)
}

// parseFloat accepts both dot and comma decimal separators.
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// transformRow drops the leading vendor row id, converts the remaining cells
// by column kind, and appends the owning account id. Short rows are padded
// with NULLs; extra trailing cells are an error.
func transformRow(record []string, accountID int64) ([]any, error) {
	if len(record) == 0 {
		return nil, eris.New("loader: empty record")
	}

	cells := record[1:]
	if len(cells) > len(ReportColumns) {
		return nil, eris.Errorf("loader: row has %d columns, schema has %d", len(cells), len(ReportColumns))
	}

	out := make([]any, 0, len(ReportColumns)+1)
	for i, col := range ReportColumns {
		if i >= len(cells) {
			out = append(out, nil)
			continue
		}
		v, err := convertCell(cells[i], col.Kind)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: column %s", col.Name)
		}
		out = append(out, v)
	}

	return append(out, accountID), nil
}

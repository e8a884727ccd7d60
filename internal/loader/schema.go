// Package loader parses report payload files and bulk-loads their rows into
// the reports table.
package loader

// Table is the reports store table name.
const Table = "reports"

// ColumnKind drives cell conversion for COPY.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindBigint
	KindFloat
	KindDate
)

// Column is one reports-table column the vendor supplies.
type Column struct {
	Name string
	Kind ColumnKind
}

// ReportColumns lists the vendor-supplied columns in file order, after the
// leading vendor row id is dropped. The vendor's own "account" column is a
// report-local value; the cross-account discriminator is the injected
// account_id.
var ReportColumns = []Column{
	{"banner", KindText},
	{"page_type", KindText},
	{"view_type", KindText},
	{"platform", KindText},
	{"request_type", KindText},
	{"sku", KindBigint},
	{"title", KindText},
	{"order_id", KindBigint},
	{"order_number", KindText},
	{"ozon_id", KindBigint},
	{"ozon_id_ad_sku", KindBigint},
	{"articul", KindBigint},
	{"empty", KindBigint},
	{"account", KindBigint},
	{"views", KindBigint},
	{"clicks", KindBigint},
	{"audience", KindBigint},
	{"exp_bonus", KindBigint},
	{"actions", KindBigint},
	{"avg_bid", KindFloat},
	{"search_price_rur", KindFloat},
	{"search_price_perc", KindFloat},
	{"price", KindFloat},
	{"orders", KindBigint},
	{"revenue_model", KindBigint},
	{"orders_model", KindBigint},
	{"revenue", KindFloat},
	{"expense", KindFloat},
	{"cpm", KindBigint},
	{"ctr", KindFloat},
	{"date", KindDate},
}

// CopyColumns returns the COPY column list: every vendor column plus the
// injected account_id.
func CopyColumns() []string {
	cols := make([]string, 0, len(ReportColumns)+1)
	for _, c := range ReportColumns {
		cols = append(cols, c.Name)
	}
	return append(cols, "account_id")
}

// DedupKey is the business key a deduplication pass partitions by.
var DedupKey = []string{"page_type", "sku", "date", "account_id"}

// Package accounts resolves the working set of advertiser accounts whose
// credentials drive the sync run.
package accounts

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/perfsync/perfsync/internal/db"
	"github.com/perfsync/perfsync/internal/model"
)

// Attribute identifies a credential attribute in the account directory.
// The directory stores credentials as (attribute_id, attribute_value) pairs.
type Attribute int64

const (
	AttrClientSecret Attribute = 8
	AttrClientID     Attribute = 9
)

// Marketplace id of the performance API in the account directory.
const marketplaceID = 14

// Directory yields the accounts to process.
type Directory interface {
	Active(ctx context.Context) ([]model.Account, error)
}

// PostgresDirectory reads accounts from the account_list and
// account_service_data tables.
type PostgresDirectory struct {
	pool db.Pool
}

// NewPostgresDirectory creates a directory backed by the given pool.
func NewPostgresDirectory(pool db.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

const activeAccountsSQL = `
SELECT al.id, asd.attribute_id, asd.attribute_value
  FROM account_list al
  JOIN account_service_data asd ON al.id = asd.account_id
 WHERE al.mp_id = $1 AND al.status = 'Active'
 ORDER BY al.id, asd.attribute_id DESC`

// Active returns all active accounts with a complete credential pair.
// An account whose client_id was already seen under another account id is
// skipped, so each credential drives at most one worker.
func (d *PostgresDirectory) Active(ctx context.Context) ([]model.Account, error) {
	rows, err := d.pool.Query(ctx, activeAccountsSQL, marketplaceID)
	if err != nil {
		return nil, eris.Wrap(err, "accounts: query active accounts")
	}
	defer rows.Close()

	byID := make(map[int64]*model.Account)
	var order []int64
	usedClients := make(map[string]bool)
	skipped := make(map[int64]bool)

	for rows.Next() {
		var (
			accID   int64
			attrID  int64
			attrVal string
		)
		if err := rows.Scan(&accID, &attrID, &attrVal); err != nil {
			return nil, eris.Wrap(err, "accounts: scan account row")
		}
		if skipped[accID] {
			continue
		}

		acc, ok := byID[accID]
		if !ok {
			acc = &model.Account{ID: accID}
			byID[accID] = acc
			order = append(order, accID)
		}

		switch Attribute(attrID) {
		case AttrClientID:
			if usedClients[attrVal] {
				skipped[accID] = true
				delete(byID, accID)
				continue
			}
			usedClients[attrVal] = true
			acc.ClientID = attrVal
		case AttrClientSecret:
			acc.ClientSecret = attrVal
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "accounts: iterate account rows")
	}

	var out []model.Account
	for _, id := range order {
		acc, ok := byID[id]
		if !ok {
			continue
		}
		if acc.ClientID == "" || acc.ClientSecret == "" {
			zap.L().Warn("account has incomplete credentials, skipping",
				zap.String("component", "accounts"),
				zap.Int64("account_id", id),
			)
			continue
		}
		out = append(out, *acc)
	}

	return out, nil
}

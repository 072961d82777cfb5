package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hazyhaar/broinfo/broinfo"
)

// errNotResolved is the uniform "dimension could not be resolved" marker.
// The coordinator absorbs it as a rollback + no-op; it never reaches callers.
var errNotResolved = errors.New("store: dimension value not resolved")

// dimension is the distinct-value store for one event attribute. Hashed
// dimensions key their unique index on (hash, value) because the value can be
// large; the hash is only an index accelerator, never the identity.
type dimension struct {
	table  string
	hashed bool
}

var (
	dimUserAgent = dimension{table: "user_agents"}
	dimReferrer  = dimension{table: "referrers"}
	dimIPAddress = dimension{table: "ip_addresses"}
	dimClientID  = dimension{table: "client_ids"}
	dimUserLabel = dimension{table: "user_labels"}
	dimJSInfo    = dimension{table: "js_infos", hashed: true}
)

var dimensions = []dimension{
	dimUserAgent, dimReferrer, dimIPAddress, dimClientID, dimUserLabel, dimJSInfo,
}

// getOrCreate resolves value to its stable id, inserting a new row on first
// encounter. The empty string is a legal value and resolves to the sentinel
// row. A losing concurrent insert falls through the unique index and is
// re-read; the index is the correctness backstop, two ids for one value can
// never be handed out.
func (d dimension) getOrCreate(ctx context.Context, tx *sql.Tx, value string) (int64, error) {
	hash := ""
	if d.hashed {
		hash = broinfo.Digest(value)
	}

	id, err := d.selectID(ctx, tx, hash, value)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: %s lookup: %w", d.table, err)
	}

	var res sql.Result
	if d.hashed {
		res, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+d.table+` (hash, value) VALUES (?, ?)`, hash, value)
	} else {
		res, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+d.table+` (value) VALUES (?)`, value)
	}
	if err != nil {
		return 0, fmt.Errorf("store: %s insert: %w", d.table, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return res.LastInsertId()
	}

	// Insert was ignored: either a concurrent writer won the unique index
	// race, or a trigger/constraint suppressed the row. Re-read; if the value
	// is still absent the field is unresolvable.
	id, err = d.selectID(ctx, tx, hash, value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errNotResolved
	}
	if err != nil {
		return 0, fmt.Errorf("store: %s re-lookup: %w", d.table, err)
	}
	return id, nil
}

func (d dimension) selectID(ctx context.Context, tx *sql.Tx, hash, value string) (int64, error) {
	var id int64
	var err error
	if d.hashed {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM `+d.table+` WHERE hash = ? AND value = ?`, hash, value).Scan(&id)
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM `+d.table+` WHERE value = ?`, value).Scan(&id)
	}
	return id, err
}

// seedSentinel inserts the empty-string row if the table does not have one.
func (d dimension) seedSentinel(db *sql.DB) error {
	var err error
	if d.hashed {
		hash := broinfo.Digest("")
		_, err = db.Exec(
			`INSERT INTO `+d.table+` (hash, value) SELECT ?, ''
			 WHERE NOT EXISTS (SELECT 1 FROM `+d.table+` WHERE hash = ? AND value = '')`,
			hash, hash)
	} else {
		_, err = db.Exec(
			`INSERT INTO ` + d.table + ` (value) SELECT ''
			 WHERE NOT EXISTS (SELECT 1 FROM ` + d.table + ` WHERE value = '')`)
	}
	return err
}

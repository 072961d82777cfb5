package store

import (
	"database/sql"
	"fmt"
)

// Dimension DDL is generated per table from the dimensions list; every table
// has the same shape apart from the extra hash column on hashed dimensions.
const dimensionDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	value TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_%[1]s_value ON %[1]s(value);
`

const hashedDimensionDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	hash TEXT NOT NULL,
	value TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_%[1]s_hash_value ON %[1]s(hash, value);
`

// factDDL creates the logs fact table: one row per collection event, each
// column a foreign key into a dimension table. One index per foreign key
// keeps later analytic queries over logs cheap.
const factDDL = `
CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	jsinfo_id INTEGER NOT NULL REFERENCES js_infos(id),
	user_agent_id INTEGER NOT NULL REFERENCES user_agents(id),
	referrer_id INTEGER NOT NULL REFERENCES referrers(id),
	ipaddress_id INTEGER NOT NULL REFERENCES ip_addresses(id),
	clientid_id INTEGER NOT NULL REFERENCES client_ids(id),
	userlabel_id INTEGER NOT NULL REFERENCES user_labels(id)
);
CREATE INDEX IF NOT EXISTS idx_logs_jsinfo_id ON logs(jsinfo_id);
CREATE INDEX IF NOT EXISTS idx_logs_user_agent_id ON logs(user_agent_id);
CREATE INDEX IF NOT EXISTS idx_logs_referrer_id ON logs(referrer_id);
CREATE INDEX IF NOT EXISTS idx_logs_ipaddress_id ON logs(ipaddress_id);
CREATE INDEX IF NOT EXISTS idx_logs_clientid_id ON logs(clientid_id);
CREATE INDEX IF NOT EXISTS idx_logs_userlabel_id ON logs(userlabel_id);
`

// Init creates the schema and seeds the sentinel rows. Safe to call on every
// startup: tables, indexes and sentinels are all created only if absent.
func Init(db *sql.DB) error {
	for _, d := range dimensions {
		ddl := dimensionDDL
		if d.hashed {
			ddl = hashedDimensionDDL
		}
		if _, err := db.Exec(fmt.Sprintf(ddl, d.table)); err != nil {
			return fmt.Errorf("store: create %s: %w", d.table, err)
		}
	}
	if _, err := db.Exec(factDDL); err != nil {
		return fmt.Errorf("store: create logs: %w", err)
	}

	// Every dimension table carries one empty-string row so a fact row can
	// always reference a valid id for a field that was not collected.
	for _, d := range dimensions {
		if err := d.seedSentinel(db); err != nil {
			return fmt.Errorf("store: seed %s: %w", d.table, err)
		}
	}
	return nil
}

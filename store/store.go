// Package store is the local SQLite backend: it maps each event field to a
// deduplicated dimension row and records one fact row per event, all inside
// a single transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/broinfo/broinfo"
	"github.com/hazyhaar/broinfo/dbopen"
)

// Store persists collection events. It implements broinfo.Recorder.
type Store struct {
	db   *sql.DB
	path string
}

// New creates a store over db. path is only reported by StorageLocation;
// pass ":memory:" or the resolved database path.
func New(db *sql.DB, path string) *Store {
	return &Store{db: db, path: path}
}

// Init creates tables, indexes and sentinel rows. Idempotent; must succeed
// before the store serves any event.
func (s *Store) Init() error {
	return Init(s.db)
}

// RecordEvent resolves every event field through its dimension table and
// inserts the referencing fact row, atomically. If one field cannot be
// resolved the whole transaction is rolled back and the event is dropped as
// a no-op: a single bad field never fails the collection round-trip. Any
// infrastructure error is returned to the caller.
func (s *Store) RecordEvent(ctx context.Context, ev *broinfo.Event) (*broinfo.Browser, error) {
	canonical, err := ev.JSInfo.Canonical()
	if err != nil {
		return nil, err
	}

	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		uaID, err := dimUserAgent.getOrCreate(ctx, tx, ev.UserAgent)
		if err != nil {
			return err
		}
		refID, err := dimReferrer.getOrCreate(ctx, tx, ev.Referrer)
		if err != nil {
			return err
		}
		ipID, err := dimIPAddress.getOrCreate(ctx, tx, ev.IPAddress)
		if err != nil {
			return err
		}
		cidID, err := dimClientID.getOrCreate(ctx, tx, ev.ClientID)
		if err != nil {
			return err
		}
		userID, err := dimUserLabel.getOrCreate(ctx, tx, ev.UserLabel)
		if err != nil {
			return err
		}
		jsID, err := dimJSInfo.getOrCreate(ctx, tx, canonical)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO logs (jsinfo_id, user_agent_id, referrer_id, ipaddress_id, clientid_id, userlabel_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			jsID, uaID, refID, ipID, cidID, userID)
		if err != nil {
			return fmt.Errorf("store: insert log: %w", err)
		}
		return nil
	})

	switch {
	case errors.Is(err, errNotResolved):
		// Rolled back. Deliberate policy: absorb and answer normally.
		slog.Debug("record event skipped", "reason", "dimension not resolved")
	case err != nil:
		return nil, err
	}

	if ev.WantBrowser {
		return ev.Browser(), nil
	}
	return nil, nil
}

// RecordUserAgent stores just the user agent dimension, without a fact row.
// Used by the optional early user-agent hop, gated by configuration upstream.
func (s *Store) RecordUserAgent(ctx context.Context, ua string) error {
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := dimUserAgent.getOrCreate(ctx, tx, ua)
		return err
	})
	if errors.Is(err, errNotResolved) {
		slog.Debug("record user agent skipped", "reason", "dimension not resolved")
		return nil
	}
	return err
}

// StorageLocation reports the database path events are written to.
func (s *Store) StorageLocation(ctx context.Context) (string, error) {
	return s.path, nil
}

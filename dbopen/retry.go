package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// One event is one small transaction, so contention clears fast; short
// doubling backoff beats a long busy_timeout stall here.
const (
	maxAttempts = 4
	baseBackoff = 50 * time.Millisecond
)

// busyMarkers are the driver error fragments that mean "writer conflict",
// the only condition worth retrying.
var busyMarkers = []string{
	"SQLITE_BUSY",
	"database is locked",
	"database table is locked",
}

// IsBusy reports whether err is a transient SQLite writer conflict.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range busyMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RunTx runs fn inside a transaction, committing on nil and rolling back on
// error. Writer conflicts are retried with doubling backoff; fn gets a fresh
// transaction each attempt and must not carry state across them.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	backoff := baseBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = inTx(ctx, db, fn); err == nil || !IsBusy(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		if werr := sleepCtx(ctx, backoff); werr != nil {
			return fmt.Errorf("dbopen: cancelled while waiting for writer: %w", werr)
		}
		backoff *= 2
	}
	return fmt.Errorf("dbopen: writer busy after %d attempts: %w", maxAttempts, err)
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

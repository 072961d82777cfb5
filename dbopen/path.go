package dbopen

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFile is the database filename used when no override is given.
const DefaultFile = "broinfo.db"

// serverBaseDir is the fallback data directory on hosts without a home
// directory (typical for the service deployment).
const serverBaseDir = "/var/local/data/broinfo"

// ResolvePath picks the database location from the three override points,
// in order: an explicit full path, a base directory joined with the file
// name (or DefaultFile), then the platform default directory. Pass empty
// strings for absent overrides. The directory is not created here; open
// with WithMkdirAll.
func ResolvePath(full, base, file string) string {
	if full != "" {
		return full
	}
	if file == "" {
		file = DefaultFile
	}
	if base == "" {
		base = defaultBaseDir()
	}
	return filepath.Join(base, file)
}

func defaultBaseDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".data", "broinfo")
	}
	return serverBaseDir
}

var (
	handleOnce sync.Once
	handleDB   *sql.DB
	handleErr  error
)

// Handle returns the process-wide database handle, opening it on first call.
// Later calls return the same handle regardless of arguments, so concurrent
// callers during startup can never race two handles (or two schemas) into
// existence. The handle lives until process exit.
func Handle(path string, opts ...Option) (*sql.DB, error) {
	handleOnce.Do(func() {
		handleDB, handleErr = Open(path, opts...)
	})
	return handleDB, handleErr
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

var errNoUserAgentBackend = errors.New("api: backend does not accept standalone user agents")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// appendLine appends data plus a newline to dir/file, creating both on
// demand. Dump failures are logged, never surfaced: the dump is a debugging
// aid and must not affect collection.
func appendLine(dir, file, data string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("debug dump mkdir", "error", err)
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		slog.Warn("debug dump open", "file", file, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(data + "\n"); err != nil {
		slog.Warn("debug dump write", "file", file, "error", err)
	}
}

// Entry point for the broinfo collection service — chi router, local SQLite
// store or NEXT_URL forwarder, graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/broinfo/api"
	"github.com/hazyhaar/broinfo/broinfo"
	"github.com/hazyhaar/broinfo/dbopen"
	"github.com/hazyhaar/broinfo/forward"
	"github.com/hazyhaar/broinfo/store"
)

func main() {
	port := env("PORT", "8080")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Backend strategy: forward to the next peer when NEXT_URL is set,
	// otherwise persist locally.
	var rec broinfo.Recorder
	if nextURL := os.Getenv("NEXT_URL"); nextURL != "" {
		rec = forward.New(nextURL, nil)
		slog.Info("backend: forwarding", "next_url", nextURL)
	} else {
		path := dbopen.ResolvePath(
			os.Getenv("BROINFO_DB_PATH"),
			os.Getenv("BROINFO_DB_BASE_PATH"),
			os.Getenv("BROINFO_DB_FILE"))
		db, err := dbopen.Handle(path, dbopen.WithMkdirAll())
		if err != nil {
			slog.Error("open database", "path", path, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		st := store.New(db, path)
		if err := st.Init(); err != nil {
			// No usable schema means no service.
			slog.Error("init schema", "error", err)
			os.Exit(1)
		}
		rec = st
		slog.Info("backend: local store", "path", path)
	}

	cfg := api.Config{
		CollectUserAgent: env("COLLECT_USER_AGENT", "") != "",
		DebugDumpDir:     os.Getenv("DEBUG_DUMP_DIR"),
		RecordDelay:      time.Duration(envInt("RECORD_DELAY_MS", 0)) * time.Millisecond,
	}

	// Router.
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/api/v1", api.New(rec, cfg).Routes())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// Package api exposes the collection endpoints over any broinfo.Recorder.
// The routes and payloads mirror what the front-end component sends; the
// same routes serve both a terminal instance (local store) and a relay
// instance (forwarder), so peers can be chained.
package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/broinfo/broinfo"
	"github.com/hazyhaar/broinfo/idgen"
)

// Config carries the runtime feature toggles consumed by the HTTP layer.
// The core store never sees these.
type Config struct {
	// CollectUserAgent enables the standalone /useragent1 save.
	CollectUserAgent bool
	// DebugDumpDir, when set, appends received values to text files in that
	// directory (user_agent.txt, jsinfo.txt).
	DebugDumpDir string
	// RecordDelay inserts an artificial pause after each record, for
	// front-end latency testing.
	RecordDelay time.Duration
}

// Handler serves the /api/v1 collection routes.
type Handler struct {
	rec   broinfo.Recorder
	cfg   Config
	newID idgen.Generator
}

// New creates a Handler over rec.
func New(rec broinfo.Recorder, cfg Config) *Handler {
	return &Handler{
		rec:   rec,
		cfg:   cfg,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
}

// Routes returns the router to mount under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/browserinfo1", h.handleBrowserInfo)
	r.Post("/useragent1", h.handleUserAgent)
	r.Post("/mikan1", h.handleStorageLocation)
	r.Post("/ringo1", h.handleClientIP)
	return r
}

func (h *Handler) handleBrowserInfo(w http.ResponseWriter, r *http.Request) {
	var ev broinfo.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, 400, err)
		return
	}
	// The client cannot know the address it connects from; fill it in unless
	// an upstream relay already did.
	if ev.IPAddress == "" {
		ev.IPAddress = clientIP(r)
	}

	eventID := h.newID()
	browser, err := h.rec.RecordEvent(r.Context(), &ev)
	if err != nil {
		slog.Error("record event", "event_id", eventID, "error", err)
		writeError(w, 500, err)
		return
	}
	slog.Debug("event recorded", "event_id", eventID, "client_id", ev.ClientID)

	h.debugDump("jsinfo.txt", &ev)
	h.delay(r)

	// browser is nil for fire-and-forget calls; encodes as JSON null, which
	// is what the component expects.
	writeJSON(w, 200, browser)
}

func (h *Handler) handleUserAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UA string `json:"ua"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	ua := strings.Trim(req.UA, `"`)

	if h.cfg.CollectUserAgent {
		ur, ok := h.rec.(broinfo.UserAgentRecorder)
		if !ok {
			writeError(w, 501, errNoUserAgentBackend)
			return
		}
		if err := ur.RecordUserAgent(r.Context(), ua); err != nil {
			slog.Error("record user agent", "error", err)
			writeError(w, 500, err)
			return
		}
		if h.cfg.DebugDumpDir != "" {
			appendLine(h.cfg.DebugDumpDir, "user_agent.txt", ua)
		}
	}

	h.delay(r)
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handler) handleStorageLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.rec.StorageLocation(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, loc)
}

func (h *Handler) handleClientIP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, clientIP(r))
}

func (h *Handler) debugDump(file string, ev *broinfo.Event) {
	if h.cfg.DebugDumpDir == "" {
		return
	}
	if canonical, err := ev.JSInfo.Canonical(); err == nil {
		appendLine(h.cfg.DebugDumpDir, file, canonical)
	}
}

func (h *Handler) delay(r *http.Request) {
	if h.cfg.RecordDelay <= 0 {
		return
	}
	t := time.NewTimer(h.cfg.RecordDelay)
	defer t.Stop()
	select {
	case <-r.Context().Done():
	case <-t.C:
	}
}

// clientIP extracts the caller's address: first X-Forwarded-For hop when
// present, else the connection's remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package broinfo defines the browser-metadata collection payload and the
// backend capability used to persist it.
//
// An Event carries the raw values extracted on the client side (user agent,
// referrer, JS-derived fingerprint fields, client IP, anonymous client id and
// an optional user label). Backends implement Recorder: the local SQLite
// implementation lives in package store, the forwarding implementation in
// package forward. Which one a deployment uses is a startup-time decision.
package broinfo

import "context"

// Event is one collection event as delivered by the HTTP glue.
type Event struct {
	UserAgent string `json:"user_agent"`
	Referrer  string `json:"referrer"`
	JSInfo    JSInfo `json:"jsinfo"`
	IPAddress string `json:"ip_address"`
	ClientID  string `json:"bicmid"`
	UserLabel string `json:"user"`

	// WantBrowser asks the backend to echo back the reconstructed Browser
	// classification. When false the call is fire-and-forget.
	WantBrowser bool `json:"return_browser"`
}

// Recorder is the abstract storage capability. RecordEvent persists one
// event; a soft per-field resolution failure is absorbed as a no-op
// (nil, nil), while infrastructure failures are returned as errors.
// StorageLocation reports where events end up, mainly for diagnostics.
type Recorder interface {
	RecordEvent(ctx context.Context, ev *Event) (*Browser, error)
	StorageLocation(ctx context.Context) (string, error)
}

// UserAgentRecorder is the optional early user-agent hop: some deployments
// save the user agent before the full fingerprint arrives. Both backends
// implement it; whether it is invoked is gated by runtime configuration.
type UserAgentRecorder interface {
	RecordUserAgent(ctx context.Context, ua string) error
}

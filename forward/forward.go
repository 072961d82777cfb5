// Package forward implements broinfo.Recorder over HTTP: events are POSTed
// to the ingest endpoints of the next broinfo peer instead of being written
// locally. Which backend a deployment runs is selected at startup (NEXT_URL),
// never at compile time.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/broinfo/broinfo"
	"github.com/hazyhaar/broinfo/idgen"
)

// requestClient identifies forwarded requests in the peer's logs.
const requestClient = "broinfo-forward"

// Each relayed request carries a short correlation id so a hop can be matched
// across both peers' logs. A full UUID would be noise at this volume.
var newRequestID = idgen.NanoID(12)

// Forwarder relays events to a peer's /api/v1 ingest endpoints.
type Forwarder struct {
	base   string
	client *http.Client
}

// New creates a Forwarder for the peer at base (scheme://host[:port], with or
// without a trailing slash). If client is nil a default with a 1 s connect
// timeout and 5 s request timeout is used.
func New(base string, client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: time.Second}).DialContext,
			},
		}
	}
	return &Forwarder{
		base:   strings.TrimSuffix(base, "/"),
		client: client,
	}
}

// RecordEvent forwards the event. The peer applies the no-op policy for soft
// failures, so a nil Browser with nil error means either fire-and-forget or
// a soft skip on the far side.
func (f *Forwarder) RecordEvent(ctx context.Context, ev *broinfo.Event) (*broinfo.Browser, error) {
	var browser *broinfo.Browser
	if err := f.post(ctx, "/api/v1/browserinfo1", ev, &browser); err != nil {
		return nil, err
	}
	return browser, nil
}

// RecordUserAgent forwards a user-agent-only save.
func (f *Forwarder) RecordUserAgent(ctx context.Context, ua string) error {
	body := map[string]string{"ua": ua}
	return f.post(ctx, "/api/v1/useragent1", body, nil)
}

// StorageLocation asks the peer where events ultimately land.
func (f *Forwarder) StorageLocation(ctx context.Context) (string, error) {
	var loc string
	if err := f.post(ctx, "/api/v1/mikan1", nil, &loc); err != nil {
		return "", err
	}
	return loc, nil
}

func (f *Forwarder) post(ctx context.Context, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("forward: encode: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.base+path, &body)
	if err != nil {
		return fmt.Errorf("forward: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Client", requestClient)
	req.Header.Set("X-Request-ID", newRequestID())

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("forward: post %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("forward: decode %s: %w", path, err)
		}
	}
	return nil
}

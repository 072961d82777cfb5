package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/broinfo/broinfo"
	"github.com/hazyhaar/broinfo/dbopen"
	"github.com/hazyhaar/broinfo/store"
)

func setup(t *testing.T, cfg Config) (*httptest.Server, *sql.DB) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	st := store.New(db, ":memory:")
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(st, cfg).Routes())
	t.Cleanup(srv.Close)
	return srv, db
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestBrowserInfo_EndToEnd(t *testing.T) {
	srv, db := setup(t, Config{})

	ev := broinfo.Event{
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Referrer:    "https://example.com/page",
		JSInfo:      broinfo.JSInfo{ScreenWidth: 1920, Language: "en-US"},
		ClientID:    "abc123",
		UserLabel:   "alice",
		WantBrowser: true,
	}
	resp := postJSON(t, srv.URL+"/browserinfo1", &ev)
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var browser broinfo.Browser
	if err := json.NewDecoder(resp.Body).Decode(&browser); err != nil {
		t.Fatal(err)
	}
	if browser.Name != "Chrome" {
		t.Errorf("browser = %+v", browser)
	}

	if n := count(t, db, `SELECT COUNT(*) FROM logs`); n != 1 {
		t.Errorf("logs = %d, want 1", n)
	}
	// The handler must have filled in the connection address.
	if n := count(t, db, `SELECT COUNT(*) FROM ip_addresses WHERE value <> ''`); n != 1 {
		t.Errorf("non-empty ip rows = %d, want 1", n)
	}
}

func TestBrowserInfo_FireAndForgetReturnsNull(t *testing.T) {
	srv, _ := setup(t, Config{})

	resp := postJSON(t, srv.URL+"/browserinfo1", &broinfo.Event{UserAgent: "TestAgent/1.0"})
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var browser *broinfo.Browser
	if err := json.NewDecoder(resp.Body).Decode(&browser); err != nil {
		t.Fatal(err)
	}
	if browser != nil {
		t.Fatalf("browser = %+v, want null", browser)
	}
}

func TestBrowserInfo_UpstreamAddressPreserved(t *testing.T) {
	srv, db := setup(t, Config{})

	req, _ := http.NewRequest("POST", srv.URL+"/browserinfo1",
		strings.NewReader(`{"user_agent":"TestAgent/1.0","ip_address":"198.51.100.7"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if n := count(t, db, `SELECT COUNT(*) FROM ip_addresses WHERE value = '198.51.100.7'`); n != 1 {
		t.Fatalf("relayed address not stored as-is")
	}
}

func TestBrowserInfo_BadJSON(t *testing.T) {
	srv, _ := setup(t, Config{})

	resp, err := http.Post(srv.URL+"/browserinfo1", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestClientIP_ForwardedForWins(t *testing.T) {
	srv, _ := setup(t, Config{})

	req, _ := http.NewRequest("POST", srv.URL+"/ringo1", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var ip string
	if err := json.NewDecoder(resp.Body).Decode(&ip); err != nil {
		t.Fatal(err)
	}
	if ip != "203.0.113.5" {
		t.Fatalf("ip = %q, want first forwarded hop", ip)
	}
}

func TestClientIP_RemoteAddrFallback(t *testing.T) {
	srv, _ := setup(t, Config{})

	resp := postJSON(t, srv.URL+"/ringo1", nil)
	defer resp.Body.Close()

	var ip string
	if err := json.NewDecoder(resp.Body).Decode(&ip); err != nil {
		t.Fatal(err)
	}
	if ip != "127.0.0.1" {
		t.Fatalf("ip = %q, want connection host without port", ip)
	}
}

func TestStorageLocation(t *testing.T) {
	srv, _ := setup(t, Config{})

	resp := postJSON(t, srv.URL+"/mikan1", nil)
	defer resp.Body.Close()

	var loc string
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		t.Fatal(err)
	}
	if loc != ":memory:" {
		t.Fatalf("location = %q", loc)
	}
}

func TestUserAgent_DisabledByDefault(t *testing.T) {
	srv, db := setup(t, Config{})

	resp := postJSON(t, srv.URL+"/useragent1", map[string]string{"ua": "TestAgent/1.0"})
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	// Disabled collection still answers ok, but writes nothing.
	if n := count(t, db, `SELECT COUNT(*) FROM user_agents WHERE value = 'TestAgent/1.0'`); n != 0 {
		t.Fatalf("user agent stored while disabled")
	}
}

func TestUserAgent_EnabledStoresAndUnquotes(t *testing.T) {
	srv, db := setup(t, Config{CollectUserAgent: true})

	resp := postJSON(t, srv.URL+"/useragent1", map[string]string{"ua": `"TestAgent/1.0"`})
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if n := count(t, db, `SELECT COUNT(*) FROM user_agents WHERE value = 'TestAgent/1.0'`); n != 1 {
		t.Fatalf("unquoted user agent not stored")
	}
}

// forwardOnly implements Recorder without the standalone user agent save.
type forwardOnly struct{}

func (forwardOnly) RecordEvent(context.Context, *broinfo.Event) (*broinfo.Browser, error) {
	return nil, nil
}
func (forwardOnly) StorageLocation(context.Context) (string, error) { return "remote", nil }

func TestUserAgent_BackendWithoutSupport(t *testing.T) {
	srv := httptest.NewServer(New(forwardOnly{}, Config{CollectUserAgent: true}).Routes())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/useragent1", map[string]string{"ua": "TestAgent/1.0"})
	resp.Body.Close()
	if resp.StatusCode != 501 {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

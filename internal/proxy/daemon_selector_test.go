package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Will-Luck/inspectbot/internal/clock"
	"github.com/Will-Luck/inspectbot/internal/logging"
)

func newTestDaemonServer(t *testing.T, proxies map[string]proxyEntry) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/proxies", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(proxiesResponse{Proxies: proxies})
	})
	mux.HandleFunc("/proxies/PROXY", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func boolPtr(b bool) *bool { return &b }

func TestDaemonSelectorFiltersMetaAndDeadEntries(t *testing.T) {
	srv := newTestDaemonServer(t, map[string]proxyEntry{
		"proxy-a":  {Type: "Shadowsocks", Alive: boolPtr(true)},
		"auto":     {Type: "URLTest"},
		"direct":   {Type: "Direct"},
		"proxy-b":  {Type: "Trojan", Alive: boolPtr(false)},
	})

	fc := clock.NewFake(time.Unix(0, 0))
	sel := NewDaemonSelector(srv.URL, "", 7890, 5*time.Second, fc, logging.New(false))

	b := sel.PickRandom(context.Background())
	if b.Name != "proxy-a" {
		t.Errorf("picked %q, want proxy-a (only live concrete candidate)", b.Name)
	}
}

func TestDaemonSelectorHonorsCooldown(t *testing.T) {
	srv := newTestDaemonServer(t, map[string]proxyEntry{
		"proxy-a": {Type: "Shadowsocks"},
		"proxy-b": {Type: "Shadowsocks"},
	})

	fc := clock.NewFake(time.Unix(0, 0))
	sel := NewDaemonSelector(srv.URL, "", 7890, 5*time.Second, fc, logging.New(false))

	first := sel.PickRandom(context.Background())
	if first.Empty() {
		t.Fatal("first pick should not be empty")
	}

	fc.Advance(2 * time.Second)
	second := sel.PickRandom(context.Background())
	if !second.Empty() {
		t.Errorf("second pick within cooldown should be empty, got %+v", second)
	}

	fc.Advance(4 * time.Second) // total 6s since first switch
	third := sel.PickRandom(context.Background())
	if third.Empty() {
		t.Error("third pick after cooldown elapsed should not be empty")
	}
}

func TestDaemonSelectorUnreachableReturnsEmptyBinding(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	sel := NewDaemonSelector("http://127.0.0.1:1", "", 7890, 5*time.Second, fc, logging.New(false))

	b := sel.PickRandom(context.Background())
	if !b.Empty() {
		t.Errorf("expected empty binding for unreachable daemon, got %+v", b)
	}
}

func TestDaemonSelectorNoCandidatesReturnsEmptyBinding(t *testing.T) {
	srv := newTestDaemonServer(t, map[string]proxyEntry{
		"direct": {Type: "Direct"},
	})
	fc := clock.NewFake(time.Unix(0, 0))
	sel := NewDaemonSelector(srv.URL, "", 7890, 5*time.Second, fc, logging.New(false))

	b := sel.PickRandom(context.Background())
	if !b.Empty() {
		t.Errorf("expected empty binding when no concrete candidates exist, got %+v", b)
	}
}

func TestDaemonSelectorBindingUsesConfiguredPorts(t *testing.T) {
	srv := newTestDaemonServer(t, map[string]proxyEntry{
		"proxy-a": {Type: "Shadowsocks"},
	})
	fc := clock.NewFake(time.Unix(0, 0))
	sel := NewDaemonSelector(srv.URL, "", 7890, 5*time.Second, fc, logging.New(false))

	b := sel.PickRandom(context.Background())
	if b.HTTPProxy != "http://127.0.0.1:7890" {
		t.Errorf("HTTPProxy = %q", b.HTTPProxy)
	}
	if b.SocksProxy != "socks5://127.0.0.1:7891" {
		t.Errorf("SocksProxy = %q", b.SocksProxy)
	}
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Will-Luck/inspectbot/internal/bot"
	"github.com/Will-Luck/inspectbot/internal/inspect"
	"github.com/Will-Luck/inspectbot/internal/logging"
)

type fakeDispatcher struct {
	readyCount int
	statuses   []bot.Status
	item       inspect.ItemInfo
	err        error
	gotLink    inspect.Link
}

func (f *fakeDispatcher) LookupInspect(ctx context.Context, link inspect.Link) (inspect.ItemInfo, error) {
	f.gotLink = link
	return f.item, f.err
}

func (f *fakeDispatcher) GetReadyCount() int { return f.readyCount }

func (f *fakeDispatcher) GetStatus() []bot.Status { return f.statuses }

func newTestServer(d *fakeDispatcher) *Server {
	return NewServer(d, logging.New(false), true)
}

func TestHandleHealthzReady(t *testing.T) {
	s := newTestServer(&fakeDispatcher{readyCount: 1})
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleHealthzNoneReady(t *testing.T) {
	s := newTestServer(&fakeDispatcher{readyCount: 0})
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	want := []bot.Status{{Index: 0, Username: "bot1", State: bot.StateReady, Ready: true}}
	s := newTestServer(&fakeDispatcher{statuses: want})
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []bot.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Username != "bot1" {
		t.Fatalf("got %+v", got)
	}
}

func TestHandleInspectMissingLink(t *testing.T) {
	s := newTestServer(&fakeDispatcher{})
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleInspectInvalidLink(t *testing.T) {
	s := newTestServer(&fakeDispatcher{})
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect?link=garbage", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleInspectDispatchFailure(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("no bots available")}
	s := newTestServer(d)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect?link=S76561198000000000+A123+Dproof", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleInspectSuccess(t *testing.T) {
	d := &fakeDispatcher{item: inspect.ItemInfo{ItemID: "123", FloatValue: 0.15}}
	s := newTestServer(d)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect?link=S76561198000000000+A123+Dproof", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got inspect.ItemInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ItemID != "123" {
		t.Fatalf("ItemID = %q, want 123", got.ItemID)
	}
	if d.gotLink.A != "123" || d.gotLink.D != "proof" {
		t.Fatalf("gotLink = %+v", d.gotLink)
	}
}

func TestHandleMetricsDisabled(t *testing.T) {
	s := NewServer(&fakeDispatcher{}, logging.New(false), false)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when metrics disabled", rec.Code)
	}
}

func TestHandleMetricsEnabled(t *testing.T) {
	s := NewServer(&fakeDispatcher{}, logging.New(false), true)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

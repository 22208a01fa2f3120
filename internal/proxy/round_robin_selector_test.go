package proxy

import (
	"context"
	"testing"
)

type fakeAssignmentStore struct {
	assignments map[int]string
}

func newFakeAssignmentStore() *fakeAssignmentStore {
	return &fakeAssignmentStore{assignments: make(map[int]string)}
}

func (f *fakeAssignmentStore) GetProxyAssignment(botIndex int) (string, bool) {
	name, ok := f.assignments[botIndex]
	return name, ok
}

func (f *fakeAssignmentStore) SaveProxyAssignment(botIndex int, proxyName string) error {
	f.assignments[botIndex] = proxyName
	return nil
}

func TestRoundRobinAssignsByIndexModulo(t *testing.T) {
	sel := NewRoundRobinSelector([]string{"proxy-a", "proxy-b", "proxy-c"}, 7890, nil)

	b0 := sel.PickForBot(context.Background(), 0, "")
	b1 := sel.PickForBot(context.Background(), 1, "")
	b3 := sel.PickForBot(context.Background(), 3, "")

	if b0.Name != "proxy-a" {
		t.Errorf("bot 0 = %q, want proxy-a", b0.Name)
	}
	if b1.Name != "proxy-b" {
		t.Errorf("bot 1 = %q, want proxy-b", b1.Name)
	}
	if b3.Name != "proxy-a" {
		t.Errorf("bot 3 = %q, want proxy-a (wraps around)", b3.Name)
	}
}

func TestRoundRobinPortsDeriveHTTPAndSocks(t *testing.T) {
	sel := NewRoundRobinSelector([]string{"proxy-a"}, 7890, nil)
	b := sel.PickForBot(context.Background(), 0, "")

	if b.HTTPProxy != "http://127.0.0.1:7890" {
		t.Errorf("HTTPProxy = %q", b.HTTPProxy)
	}
	if b.SocksProxy != "socks5://127.0.0.1:7891" {
		t.Errorf("SocksProxy = %q", b.SocksProxy)
	}
}

func TestRoundRobinEmptyNamesReturnsEmptyBinding(t *testing.T) {
	sel := NewRoundRobinSelector(nil, 7890, nil)
	b := sel.PickForBot(context.Background(), 0, "")
	if !b.Empty() {
		t.Errorf("expected empty binding, got %+v", b)
	}
}

func TestRoundRobinPersistsAssignment(t *testing.T) {
	st := newFakeAssignmentStore()
	sel := NewRoundRobinSelector([]string{"proxy-a", "proxy-b"}, 7890, st)

	sel.PickForBot(context.Background(), 1, "")

	name, ok := st.GetProxyAssignment(1)
	if !ok || name != "proxy-b" {
		t.Errorf("store assignment = (%q, %v), want (proxy-b, true)", name, ok)
	}
}

func TestRoundRobinReusesPersistedAssignmentAcrossReshuffles(t *testing.T) {
	st := newFakeAssignmentStore()
	st.assignments[2] = "proxy-sticky"
	// Selector constructed with a different name list -- the persisted
	// assignment still wins, so restarts don't reshuffle egress.
	sel := NewRoundRobinSelector([]string{"proxy-a", "proxy-b", "proxy-c"}, 7890, st)

	b := sel.PickForBot(context.Background(), 2, "")
	if b.Name != "proxy-sticky" {
		t.Errorf("Name = %q, want proxy-sticky", b.Name)
	}
}

func TestRoundRobinCurrentNameTracksLastPick(t *testing.T) {
	sel := NewRoundRobinSelector([]string{"proxy-a", "proxy-b"}, 7890, nil)
	sel.PickForBot(context.Background(), 1, "")

	if sel.CurrentName() != "proxy-b" {
		t.Errorf("CurrentName() = %q, want proxy-b", sel.CurrentName())
	}
}

func TestParseProxyNames(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{"a, b , c", []string{"a", "b", "c"}},
		{",,a,,", []string{"a"}},
	}
	for _, tt := range tests {
		got := ParseProxyNames(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("ParseProxyNames(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseProxyNames(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}

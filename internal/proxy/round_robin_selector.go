package proxy

import (
	"context"
	"strings"
	"sync"
)

// assignmentStore is the persistence capability RoundRobinSelector needs;
// satisfied by *store.Store.
type assignmentStore interface {
	GetProxyAssignment(botIndex int) (string, bool)
	SaveProxyAssignment(botIndex int, proxyName string) error
}

// RoundRobinSelector assigns proxies to bots from a fixed list, round-robin
// by bot index, persisting the mapping so restarts keep stable egress
// assignments (§4.2 Alternative mode).
type RoundRobinSelector struct {
	names     []string
	httpPort  int
	socksPort int
	store     assignmentStore

	mu      sync.Mutex
	current string
}

// NewRoundRobinSelector builds a selector cycling through names, binding
// local listener ports httpPort/httpPort+1, persisting assignments in
// store. store may be nil to disable persistence (in-memory only).
func NewRoundRobinSelector(names []string, httpPort int, store assignmentStore) *RoundRobinSelector {
	return &RoundRobinSelector{
		names:     names,
		httpPort:  httpPort,
		socksPort: httpPort + 1,
		store:     store,
	}
}

// PickForBot returns the persisted or newly computed round-robin binding
// for botIndex.
func (r *RoundRobinSelector) PickForBot(_ context.Context, botIndex int, _ string) Binding {
	if len(r.names) == 0 {
		return Binding{}
	}

	if r.store != nil {
		if name, ok := r.store.GetProxyAssignment(botIndex); ok {
			r.setCurrent(name)
			return r.bindingFor(name)
		}
	}

	name := r.names[botIndex%len(r.names)]
	if r.store != nil {
		_ = r.store.SaveProxyAssignment(botIndex, name)
	}
	r.setCurrent(name)
	return r.bindingFor(name)
}

// PickRandom has no meaning in round-robin mode keyed by bot index; it
// returns the binding for bot index 0 as a reasonable default for callers
// that don't know their index yet.
func (r *RoundRobinSelector) PickRandom(ctx context.Context) Binding {
	return r.PickForBot(ctx, 0, "")
}

// CurrentName returns the most recently handed-out proxy name.
func (r *RoundRobinSelector) CurrentName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *RoundRobinSelector) setCurrent(name string) {
	r.mu.Lock()
	r.current = name
	r.mu.Unlock()
}

func (r *RoundRobinSelector) bindingFor(name string) Binding {
	return Binding{
		HTTPProxy:  addr("http", r.httpPort),
		SocksProxy: addr("socks5", r.socksPort),
		Name:       name,
	}
}

// ParseProxyNames splits a comma-separated config value into a proxy
// name list, dropping empty entries.
func ParseProxyNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

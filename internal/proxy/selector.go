// Package proxy picks egress proxies for bots from an external proxy
// control plane (e.g. a local Clash-compatible HTTP API), or from a
// precomputed round-robin mapping persisted across restarts.
package proxy

import "context"

// Binding is the egress configuration a Bot should use for its session,
// or the zero value to mean "no binding" (fall back to a direct
// connection).
type Binding struct {
	HTTPProxy  string
	SocksProxy string
	Name       string
}

// Empty reports whether b carries no binding (direct connection).
func (b Binding) Empty() bool { return b.Name == "" }

// Selector picks a live egress proxy per bot and rate-limits switches.
// All errors are non-fatal: failures surface as the zero Binding, never as
// an error that should abort a login attempt (§4.2 Failure policy).
type Selector interface {
	// PickRandom returns a binding suitable for a fresh session, honoring
	// the switch cooldown. Returns the zero Binding if the cooldown is
	// active, the daemon is unreachable, or no candidates exist.
	PickRandom(ctx context.Context) Binding
	// PickForBot returns the binding assigned to a specific bot index,
	// for selectors operating in precomputed-mapping mode.
	PickForBot(ctx context.Context, botIndex int, botID string) Binding
	// CurrentName returns the name of the currently selected upstream, or
	// "" if none is selected.
	CurrentName() string
}

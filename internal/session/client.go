// Package session defines the narrow capability a Bot needs from its
// underlying Steam + Game Coordinator client, and ships a deterministic,
// scriptable fake implementing it for tests. A real implementation fronts
// whatever Steam/GC protocol library a deployment chooses; this package
// never speaks that wire protocol itself.
package session

import (
	"context"

	"github.com/Will-Luck/inspectbot/internal/inspect"
	"github.com/Will-Luck/inspectbot/internal/proxy"
)

// Credentials are the login parameters a Bot supplies to LogOn.
type Credentials struct {
	AccountName      string
	Password         string
	RememberPassword bool
	AuthCode         string // short one-time Steam Guard code
	TwoFactorCode    string // long-form TOTP-derived code
}

// EventKind identifies the kind of asynchronous event a Client emits.
type EventKind string

const (
	EventError              EventKind = "error"
	EventDisconnected       EventKind = "disconnected"
	EventLoggedOn           EventKind = "logged_on"
	EventOwnershipCached    EventKind = "ownership_cached"
	EventConnectedToGC      EventKind = "connected_to_gc"
	EventDisconnectedFromGC EventKind = "disconnected_from_gc"
	EventConnectionStatus   EventKind = "connection_status"
	EventInspectItemInfo    EventKind = "inspect_item_info"
)

// Event is a single asynchronous notification from the Client. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	Err             error  // EventError
	DisconnectCode  int    // EventDisconnected
	DisconnectMsg   string // EventDisconnected
	GCLostReason    string // EventDisconnectedFromGC
	ConnectionState string // EventConnectionStatus
	OwnsRequestedApp bool  // EventOwnershipCached

	Item inspect.RawItemInfo // EventInspectItemInfo
}

// Client is the capability a Bot requires from its Steam + GC session.
// Implementations may front any compatible library or an in-house
// protocol stack; nothing in this package assumes a particular wire
// format.
type Client interface {
	// Bind configures the egress proxy a subsequent LogOn should dial
	// through. Called before LogOn whenever the ProxySelector returns a
	// non-empty binding; the zero Binding means "dial directly".
	Bind(ctx context.Context, binding proxy.Binding) error
	// LogOn starts (or restarts) a session with the given credentials.
	LogOn(ctx context.Context, creds Credentials) error
	// LogOff tears down the current session.
	LogOff(ctx context.Context) error
	// Relog requests a fresh Steam-level session without changing
	// credentials, used for the scheduled refresh in §4.3.
	Relog(ctx context.Context) error
	// SetPlayedGames announces the set of app ids currently "played",
	// which is how a GC session is opened (non-empty) or closed (empty).
	SetPlayedGames(ctx context.Context, appIDs []uint32, persist bool) error
	// RequestFreeLicense requests ownership grants for the given app ids.
	RequestFreeLicense(ctx context.Context, appIDs []uint32) error
	// OwnsApp reports whether the logged-on account owns appID.
	OwnsApp(ctx context.Context, appID uint32) (bool, error)
	// InspectItem issues an inspect RPC to the GC. The reply arrives
	// asynchronously as an EventInspectItemInfo on Events().
	InspectItem(ctx context.Context, ownerID, assetID, proofToken string) error
	// Events returns the channel of asynchronous notifications. The
	// channel is closed when Close is called.
	Events() <-chan Event
	// Close releases all resources held by the client.
	Close() error
}

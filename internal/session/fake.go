package session

import (
	"context"
	"sync"

	"github.com/Will-Luck/inspectbot/internal/inspect"
	"github.com/Will-Luck/inspectbot/internal/proxy"
)

// Fake is a deterministic, scriptable in-memory Client for tests. It
// records the calls made against it and lets the test drive asynchronous
// events by calling the Emit* helpers directly.
type Fake struct {
	mu sync.Mutex

	events chan Event
	closed bool

	// LogOnFunc, if set, is invoked on LogOn and its error is returned.
	// This lets tests script login failures without a real network.
	LogOnFunc func(creds Credentials) error

	// OwnsAppFunc, if set, controls the OwnsApp response.
	OwnsAppFunc func(appID uint32) (bool, error)

	BindCalls              []proxy.Binding
	LogOnCalls             []Credentials
	LogOffCalls            int
	RelogCalls             int
	SetPlayedGamesCalls    [][]uint32
	RequestFreeLicenseCall []uint32
	InspectItemCalls       []InspectCall
}

// InspectCall records a single InspectItem invocation.
type InspectCall struct {
	OwnerID, AssetID, ProofToken string
}

// NewFake returns a ready-to-use Fake client.
func NewFake() *Fake {
	return &Fake{
		events: make(chan Event, 64),
	}
}

func (f *Fake) Bind(_ context.Context, binding proxy.Binding) error {
	f.mu.Lock()
	f.BindCalls = append(f.BindCalls, binding)
	f.mu.Unlock()
	return nil
}

func (f *Fake) LogOn(_ context.Context, creds Credentials) error {
	f.mu.Lock()
	f.LogOnCalls = append(f.LogOnCalls, creds)
	fn := f.LogOnFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(creds)
	}
	return nil
}

func (f *Fake) LogOff(_ context.Context) error {
	f.mu.Lock()
	f.LogOffCalls++
	f.mu.Unlock()
	return nil
}

func (f *Fake) Relog(_ context.Context) error {
	f.mu.Lock()
	f.RelogCalls++
	f.mu.Unlock()
	return nil
}

func (f *Fake) SetPlayedGames(_ context.Context, appIDs []uint32, _ bool) error {
	f.mu.Lock()
	cp := append([]uint32(nil), appIDs...)
	f.SetPlayedGamesCalls = append(f.SetPlayedGamesCalls, cp)
	f.mu.Unlock()
	return nil
}

func (f *Fake) RequestFreeLicense(_ context.Context, appIDs []uint32) error {
	f.mu.Lock()
	f.RequestFreeLicenseCall = append(f.RequestFreeLicenseCall, appIDs...)
	f.mu.Unlock()
	return nil
}

func (f *Fake) OwnsApp(_ context.Context, appID uint32) (bool, error) {
	f.mu.Lock()
	fn := f.OwnsAppFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(appID)
	}
	return true, nil
}

func (f *Fake) InspectItem(_ context.Context, ownerID, assetID, proofToken string) error {
	f.mu.Lock()
	f.InspectItemCalls = append(f.InspectItemCalls, InspectCall{ownerID, assetID, proofToken})
	f.mu.Unlock()
	return nil
}

func (f *Fake) Events() <-chan Event {
	return f.events
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

// Emit pushes an event onto the fake's event channel. It is a no-op (not a
// panic) once the client is closed, so teardown races in tests don't fail.
func (f *Fake) Emit(evt Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- evt
}

// EmitLoggedOn is a convenience wrapper for a successful logon event.
func (f *Fake) EmitLoggedOn() { f.Emit(Event{Kind: EventLoggedOn}) }

// EmitOwnershipCached emits the one-shot ownership signal.
func (f *Fake) EmitOwnershipCached(owns bool) {
	f.Emit(Event{Kind: EventOwnershipCached, OwnsRequestedApp: owns})
}

// EmitConnectedToGC emits a successful GC attach.
func (f *Fake) EmitConnectedToGC() { f.Emit(Event{Kind: EventConnectedToGC}) }

// EmitDisconnectedFromGC emits a GC session drop with the given reason.
func (f *Fake) EmitDisconnectedFromGC(reason string) {
	f.Emit(Event{Kind: EventDisconnectedFromGC, GCLostReason: reason})
}

// EmitError emits a generic client error, used to drive login retry
// classification in tests.
func (f *Fake) EmitError(err error) {
	f.Emit(Event{Kind: EventError, Err: err})
}

// EmitInspectItemInfo emits a GC inspect reply.
func (f *Fake) EmitInspectItemInfo(item inspect.RawItemInfo) {
	f.Emit(Event{Kind: EventInspectItemInfo, Item: item})
}

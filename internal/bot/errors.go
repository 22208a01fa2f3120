package bot

import "errors"

var (
	// ErrNotReady is returned by SendInspect when the bot is not in the
	// READY state.
	ErrNotReady = errors.New("bot: not ready")
	// ErrTtlExceeded is delivered when no matching GC reply arrives
	// within request_ttl.
	ErrTtlExceeded = errors.New("bot: ttl exceeded")
	// ErrDestroyed is returned by operations attempted after destroy.
	ErrDestroyed = errors.New("bot: destroyed")
)

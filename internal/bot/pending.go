package bot

import (
	"time"

	"github.com/Will-Luck/inspectbot/internal/inspect"
)

// pendingRequest tracks the single in-flight inspect request a bot may
// hold at a time (I3 invariant).
type pendingRequest struct {
	link     inspect.Link
	issuedAt time.Time
	resultCh chan inspectResult
}

type inspectResult struct {
	item inspect.ItemInfo
	err  error
}

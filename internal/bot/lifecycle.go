package bot

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/Will-Luck/inspectbot/internal/events"
	"github.com/Will-Luck/inspectbot/internal/inspect"
	"github.com/Will-Luck/inspectbot/internal/metrics"
	"github.com/Will-Luck/inspectbot/internal/session"
)

const (
	refreshBusyRetry  = 30 * time.Second
	gcAttachSettleGap = 1 * time.Second
)

// enterLoggingIn binds egress via the proxy selector, constructs
// credentials, and issues logOn. Results arrive asynchronously via the
// session client's event channel, handled by eventLoop.
func (b *Bot) enterLoggingIn(ctx context.Context) {
	b.mu.Lock()
	if b.state == StateDead {
		b.mu.Unlock()
		return
	}
	b.state = StateLoggingIn
	b.mu.Unlock()

	if b.proxySelector != nil {
		binding := b.proxySelector.PickForBot(ctx, b.Index, b.username)
		if binding.Empty() {
			b.log.Debug("bot: no proxy binding, falling back to direct", "bot_index", b.Index)
		} else if err := b.client.Bind(ctx, binding); err != nil {
			b.log.Warn("bot: failed to bind egress proxy, falling back to direct", "bot_index", b.Index, "proxy", binding.Name, "error", err)
		}
	}

	creds := b.resolveCredentials()
	if err := b.client.LogOn(ctx, creds); err != nil {
		b.handleLoginError(ctx, err)
	}
}

// eventLoop is the single goroutine that owns processing of this bot's
// SessionClient events, serializing all state transitions driven by them.
func (b *Bot) eventLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-b.client.Events():
			if !ok {
				return
			}
			b.handleEvent(ctx, evt)
		}
	}
}

func (b *Bot) handleEvent(ctx context.Context, evt session.Event) {
	switch evt.Kind {
	case session.EventError:
		b.mu.Lock()
		loggingIn := b.state == StateLoggingIn
		b.mu.Unlock()
		if loggingIn {
			b.handleLoginError(ctx, evt.Err)
		} else {
			b.log.Warn("bot: session error", "bot_index", b.Index, "error", evt.Err)
		}
	case session.EventDisconnected:
		b.log.Info("bot: disconnected", "bot_index", b.Index, "code", evt.DisconnectCode, "message", evt.DisconnectMsg)
	case session.EventLoggedOn:
		b.handleLoggedOn(ctx)
	case session.EventOwnershipCached:
		b.handleOwnershipCached(ctx, evt.OwnsRequestedApp)
	case session.EventConnectedToGC:
		b.handleConnectedToGC()
	case session.EventDisconnectedFromGC:
		b.handleDisconnectedFromGC(ctx, evt.GCLostReason)
	case session.EventConnectionStatus:
		b.log.Debug("bot: connection status", "bot_index", b.Index, "status", evt.ConnectionState)
	case session.EventInspectItemInfo:
		b.deliverReply(evt.Item)
	}
}

func (b *Bot) handleLoginError(ctx context.Context, err error) {
	retryable := b.classifier(err)

	b.mu.Lock()
	attempt := b.loginAttempt
	maxRetries := b.cfg.MaxLoginRetries
	if retryable && attempt < maxRetries {
		b.loginAttempt++
		attempt = b.loginAttempt
		b.mu.Unlock()

		delay := backoffDelay(b.cfg.LoginRetryDelay, attempt)
		metrics.LoginAttemptsTotal.WithLabelValues("retryable").Inc()
		b.log.Info("bot: scheduling login retry", "bot_index", b.Index, "attempt", attempt, "delay", delay)

		go func() {
			select {
			case <-b.clk.After(delay):
				b.enterLoggingIn(ctx)
			case <-ctx.Done():
			}
		}()
		return
	}
	b.state = StateDead
	b.mu.Unlock()

	metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
	b.log.Error("bot: login failed permanently", "bot_index", b.Index, "error", err)
	b.bus.Publish(events.Event{Kind: events.KindLoginFailed, BotIndex: b.Index, Username: b.username, Message: err.Error(), Timestamp: b.clk.Now()})
}

// backoffDelay computes base * 2^(attempt-1), matching P4.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

func (b *Bot) handleLoggedOn(ctx context.Context) {
	b.mu.Lock()
	b.loginAttempt = 0
	relogin := b.relogin
	b.mu.Unlock()

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	_ = b.client.SetPlayedGames(ctx, nil, true)

	if relogin {
		_ = b.client.SetPlayedGames(ctx, []uint32{csgoAppID}, true)
		b.mu.Lock()
		b.state = StateGCConnecting
		b.relogin = false
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	b.state = StateLoggedOn
	b.waitingOwnership = true
	b.mu.Unlock()
	// Ownership resolution continues in handleOwnershipCached once the
	// one-shot ownershipCached event arrives.
}

func (b *Bot) handleOwnershipCached(ctx context.Context, owns bool) {
	b.mu.Lock()
	if !b.waitingOwnership {
		b.mu.Unlock()
		return
	}
	b.waitingOwnership = false
	b.mu.Unlock()

	if !owns {
		if err := b.client.RequestFreeLicense(ctx, []uint32{csgoAppID}); err != nil {
			b.log.Warn("bot: free license request failed", "bot_index", b.Index, "error", err)
		}
	}

	_ = b.client.SetPlayedGames(ctx, []uint32{csgoAppID}, true)

	b.mu.Lock()
	b.state = StateGCConnecting
	b.relogin = false // fresh-login path; handleLoggedOn clears it on the relog path.
	b.mu.Unlock()
}

func (b *Bot) handleConnectedToGC() {
	b.mu.Lock()
	b.gcAttempt = 0
	b.lastGcActivity = b.clk.Now()
	b.state = StateReady
	wasReady := b.everReady
	b.everReady = true
	b.mu.Unlock()

	metrics.GcReconnectsTotal.WithLabelValues("success").Inc()
	if !wasReady {
		b.bus.Publish(events.Event{Kind: events.KindReady, BotIndex: b.Index, Username: b.username, Timestamp: b.clk.Now()})
	}
}

func (b *Bot) handleDisconnectedFromGC(ctx context.Context, reason string) {
	b.mu.Lock()
	wasReady := b.state == StateReady
	b.state = StateGCLost
	b.mu.Unlock()

	b.log.Info("bot: GC session lost", "bot_index", b.Index, "reason", reason)
	if wasReady {
		b.mu.Lock()
		b.everReady = false // the next GC attach publishes ready again
		b.mu.Unlock()
		b.bus.Publish(events.Event{Kind: events.KindUnready, BotIndex: b.Index, Username: b.username, Message: reason, Timestamp: b.clk.Now()})
	}
	b.scheduleGCReconnect(ctx)
}

// scheduleGCReconnect implements the exponential-backoff GC reattach in
// §4.3. It is idempotent: a second call while a reconnect is already
// pending is a no-op.
func (b *Bot) scheduleGCReconnect(ctx context.Context) {
	b.mu.Lock()
	if b.gcReconnectPending {
		b.mu.Unlock()
		return
	}
	if b.gcAttempt >= b.cfg.MaxGcReconnectAttempts {
		b.mu.Unlock()
		metrics.GcReconnectsTotal.WithLabelValues("exhausted").Inc()
		b.bus.Publish(events.Event{Kind: events.KindGcReconnectFailed, BotIndex: b.Index, Username: b.username, Timestamp: b.clk.Now()})
		return
	}
	b.gcAttempt++
	attempt := b.gcAttempt
	b.gcReconnectPending = true
	b.mu.Unlock()

	delay := backoffDelay(b.cfg.GcReconnectDelay, attempt)
	b.log.Info("bot: scheduling GC reconnect", "bot_index", b.Index, "attempt", attempt, "delay", delay)

	go func() {
		defer func() {
			b.mu.Lock()
			b.gcReconnectPending = false
			b.mu.Unlock()
		}()
		select {
		case <-b.clk.After(delay):
		case <-ctx.Done():
			return
		}

		b.mu.Lock()
		loggedOn := b.state == StateGCLost || b.state == StateLoggedOn || b.state == StateGCConnecting
		b.mu.Unlock()
		if !loggedOn {
			return
		}

		_ = b.client.SetPlayedGames(ctx, nil, true)
		select {
		case <-b.clk.After(gcAttachSettleGap):
		case <-ctx.Done():
			return
		}
		_ = b.client.SetPlayedGames(ctx, []uint32{csgoAppID}, true)
	}()
}

// deliverReply matches an inbound GC reply against the current pending
// request, ignoring cross-talk left over from a prior, already-resolved
// request (P7). On a match it delivers the normalized item and schedules
// the busy cooldown for request_delay minus elapsed time (§4.3/P2).
func (b *Bot) deliverReply(raw inspect.RawItemInfo) {
	b.mu.Lock()
	pr := b.pending
	if pr == nil || pr.link.A != raw.ItemID {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	elapsed := b.clk.Now().Sub(pr.issuedAt)
	b.mu.Unlock()

	delay := b.cfg.RequestDelay() - elapsed
	if delay < 0 {
		delay = 0
	}
	item := inspect.Normalize(raw, pr.link, delay)

	select {
	case pr.resultCh <- inspectResult{item: item}:
	default:
		// TTL already fired and nobody is listening; drop.
	}

	go func() {
		<-b.clk.After(delay)
		b.mu.Lock()
		if b.pending == nil {
			b.busy = false
		}
		b.mu.Unlock()
	}()
}

// healthMonitorLoop periodically checks this bot's session liveness: it
// starts a login for a bot still in INIT, stops once the bot is DEAD, and
// kicks a GC reconnect when the GC session is lost, not yet attached, or
// has gone quiet for longer than GcInactivityMax. A Steam-level disconnect
// is only logged and leaves the state unchanged, so it does not trigger a
// re-login here.
func (b *Bot) healthMonitorLoop(ctx context.Context) {
	defer b.wg.Done()
	interval := b.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.clk.After(interval):
		}

		b.mu.Lock()
		state := b.state
		busy := b.busy
		lastActivity := b.lastGcActivity
		b.mu.Unlock()

		switch state {
		case StateDead:
			return
		case StateInit:
			go b.enterLoggingIn(ctx)
		case StateReady:
			if !lastActivity.IsZero() && b.clk.Since(lastActivity) > b.cfg.GcInactivityMax {
				b.mu.Lock()
				b.state = StateGCLost
				b.mu.Unlock()
				b.scheduleGCReconnect(ctx)
			}
		case StateGCLost:
			if !busy {
				b.scheduleGCReconnect(ctx)
			}
		case StateLoggedOn, StateGCConnecting:
			b.scheduleGCReconnect(ctx)
		}
	}
}

// scheduledRefreshLoop periodically re-logs the bot's session (a
// defensive measure against silent GC-side session rot), gated on the
// bot being idle so a refresh never interrupts an in-flight inspect.
func (b *Bot) scheduledRefreshLoop(ctx context.Context) {
	defer b.wg.Done()
	period := b.cfg.RefreshInterval
	if period <= 0 {
		return
	}
	for {
		jitter := time.Duration(0)
		if b.cfg.RefreshJitter > 0 {
			jitter = time.Duration(rand.Int64N(int64(b.cfg.RefreshJitter)))
		}
		select {
		case <-ctx.Done():
			return
		case <-b.clk.After(period + jitter):
		}

		b.mu.Lock()
		busy := b.busy
		state := b.state
		b.mu.Unlock()

		if state != StateReady {
			continue
		}
		if busy {
			// Re-arm shortly rather than interrupting the in-flight
			// request (REDESIGN FLAG: refresh must not fire mid-inspect).
			select {
			case <-ctx.Done():
				return
			case <-b.clk.After(refreshBusyRetry):
			}
			b.mu.Lock()
			busy = b.busy
			state = b.state
			b.mu.Unlock()
			if busy || state != StateReady {
				continue
			}
		}

		b.mu.Lock()
		b.relogin = true
		b.mu.Unlock()
		if err := b.client.Relog(ctx); err != nil {
			b.log.Warn("bot: scheduled relog failed", "bot_index", b.Index, "error", err)
		}
	}
}

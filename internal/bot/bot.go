package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Will-Luck/inspectbot/internal/clock"
	"github.com/Will-Luck/inspectbot/internal/config"
	"github.com/Will-Luck/inspectbot/internal/events"
	"github.com/Will-Luck/inspectbot/internal/inspect"
	"github.com/Will-Luck/inspectbot/internal/logging"
	"github.com/Will-Luck/inspectbot/internal/metrics"
	"github.com/Will-Luck/inspectbot/internal/proxy"
	"github.com/Will-Luck/inspectbot/internal/session"
	"github.com/Will-Luck/inspectbot/internal/steamguard"
)

// Bot owns one account's full lifecycle: login, GC session attach, serving
// inspect requests, and recovery from proxy/session/GC failures. Only this
// Bot's own event-handling goroutines mutate its state; all access is
// additionally guarded by mu since SendInspect is called concurrently by
// the controller's dispatcher.
type Bot struct {
	Index int

	cfg           *config.Config
	client        session.Client
	proxySelector proxy.Selector
	clk           clock.Clock
	log           *logging.Logger
	bus           *events.Bus
	classifier    Classifier

	username   string
	password   string
	authSecret string

	mu                 sync.Mutex
	state              State
	busy               bool
	loginAttempt       int
	gcAttempt          int
	lastGcActivity     time.Time
	relogin            bool
	waitingOwnership   bool
	gcReconnectPending bool
	pending            *pendingRequest
	everReady          bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Bot bound to client, using selector for egress and
// publishing lifecycle events on bus. classifier may be nil to use
// DefaultClassifier.
func New(index int, cfg *config.Config, client session.Client, selector proxy.Selector, clk clock.Clock, log *logging.Logger, bus *events.Bus, classifier Classifier) *Bot {
	if classifier == nil {
		classifier = DefaultClassifier
	}
	return &Bot{
		Index:         index,
		cfg:           cfg,
		client:        client,
		proxySelector: selector,
		clk:           clk,
		log:           log,
		bus:           bus,
		classifier:    classifier,
		state:         StateInit,
	}
}

// Login (re)initializes the session with the given credentials. Idempotent:
// any in-flight session is torn down first. authSecret may be a short
// one-time code or a long TOTP seed (§4.3 heuristic).
func (b *Bot) Login(ctx context.Context, username, password, authSecret string) error {
	b.mu.Lock()
	prevCancel := b.cancel
	wasRunning := b.state != StateInit && b.state != StateDead
	b.mu.Unlock()

	if wasRunning {
		_ = b.client.LogOff(ctx)
	}
	if prevCancel != nil {
		prevCancel()
		b.wg.Wait()
	}

	b.mu.Lock()
	b.username = username
	b.password = password
	b.authSecret = authSecret
	b.loginAttempt = 0
	b.state = StateInit
	b.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(3)
	go b.eventLoop(runCtx)
	go b.healthMonitorLoop(runCtx)
	go b.scheduledRefreshLoop(runCtx)

	go b.enterLoggingIn(runCtx)

	return nil
}

// SendInspect serves an inspect request on this bot, failing immediately
// if the bot is not READY.
func (b *Bot) SendInspect(ctx context.Context, link inspect.Link) (inspect.ItemInfo, error) {
	b.mu.Lock()
	if b.state != StateReady || b.busy {
		b.mu.Unlock()
		return inspect.ItemInfo{}, ErrNotReady
	}
	pr := &pendingRequest{
		link:     link,
		issuedAt: b.clk.Now(),
		resultCh: make(chan inspectResult, 1),
	}
	b.busy = true
	b.pending = pr
	b.mu.Unlock()

	start := time.Now()
	if err := b.client.InspectItem(ctx, link.S, link.A, link.D); err != nil {
		b.clearPendingIfCurrent(pr)
		metrics.InspectRequestsTotal.WithLabelValues("error").Inc()
		return inspect.ItemInfo{}, fmt.Errorf("inspect: %w", err)
	}

	ttl := b.cfg.RequestTTL()
	select {
	case res := <-pr.resultCh:
		metrics.InspectDuration.Observe(time.Since(start).Seconds())
		if res.err != nil {
			metrics.InspectRequestsTotal.WithLabelValues("error").Inc()
		} else {
			metrics.InspectRequestsTotal.WithLabelValues("success").Inc()
		}
		return res.item, res.err
	case <-b.clk.After(ttl):
		b.clearPendingIfCurrent(pr)
		metrics.InspectRequestsTotal.WithLabelValues("ttl_exceeded").Inc()
		return inspect.ItemInfo{}, ErrTtlExceeded
	case <-ctx.Done():
		b.clearPendingIfCurrent(pr)
		return inspect.ItemInfo{}, ctx.Err()
	}
}

func (b *Bot) clearPendingIfCurrent(pr *pendingRequest) {
	b.mu.Lock()
	if b.pending == pr {
		b.pending = nil
		b.busy = false
	}
	b.mu.Unlock()
}

// IsReady reports whether the bot is currently serving-eligible.
func (b *Bot) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateReady && !b.busy
}

// IsBusy reports whether the bot currently holds a pending request.
func (b *Bot) IsBusy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy
}

// GetStatus returns a point-in-time snapshot of the bot's state.
func (b *Bot) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Index:        b.Index,
		Username:     b.username,
		State:        b.state,
		Ready:        b.state == StateReady && !b.busy,
		Busy:         b.busy,
		LoginAttempt: b.loginAttempt,
		GcAttempt:    b.gcAttempt,
	}
}

// Destroy cancels all scheduled timers and logs off the session. It
// blocks until the bot's background goroutines have exited.
func (b *Bot) Destroy() {
	b.mu.Lock()
	cancel := b.cancel
	b.state = StateDead
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = b.client.LogOff(context.Background())
	_ = b.client.Close()
	b.wg.Wait()
}

func (b *Bot) resolveCredentials() session.Credentials {
	b.mu.Lock()
	username, password, authSecret := b.username, b.password, b.authSecret
	b.mu.Unlock()

	creds := session.Credentials{
		AccountName:      username,
		Password:         password,
		RememberPassword: true,
	}

	if authSecret != "" {
		code, err := steamguard.ResolveCode(authSecret)
		if err != nil {
			b.log.Warn("bot: failed to derive steam guard code", "bot_index", b.Index, "error", err)
		} else if steamguard.IsTOTPSeed(authSecret) {
			creds.TwoFactorCode = code
		} else {
			creds.AuthCode = code
		}
	}

	return creds
}

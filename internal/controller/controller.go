// Package controller owns the bot pool: it creates and destroys bots,
// dispatches inspect requests to a free ready bot, and aggregates
// per-bot readiness into a single edge-triggered service-level signal.
package controller

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Will-Luck/inspectbot/internal/bot"
	"github.com/Will-Luck/inspectbot/internal/clock"
	"github.com/Will-Luck/inspectbot/internal/events"
	"github.com/Will-Luck/inspectbot/internal/inspect"
	"github.com/Will-Luck/inspectbot/internal/logging"
	"github.com/Will-Luck/inspectbot/internal/metrics"
)

// ErrNoBotsAvailable is returned by LookupInspect when no bot is both
// ready and idle at dispatch time.
var ErrNoBotsAvailable = errors.New("controller: no bots available")

// Status is a per-bot readiness snapshot, as returned by GetStatus.
type Status = bot.Status

// Controller owns the fleet's bots. Its bot slice is append-only during
// startup (via AddBot) and logically frozen afterward except for Destroy.
type Controller struct {
	clk clock.Clock
	log *logging.Logger
	bus *events.Bus

	mu    sync.Mutex
	bots  []*bot.Bot
	ready bool // edge-triggered service-level readiness latch (I5)

	wg sync.WaitGroup
}

// New constructs an empty Controller. Bots are added via AddBot.
func New(clk clock.Clock, log *logging.Logger, bus *events.Bus) *Controller {
	return &Controller{clk: clk, log: log, bus: bus}
}

// Start launches the background goroutine that recomputes aggregate
// readiness whenever any bot's own ready/unready event crosses the bus,
// implementing the edge-triggered latch in I5/P5. It returns immediately;
// the goroutine exits once ctx is canceled, and Wait blocks until it has.
func (c *Controller) Start(ctx context.Context) {
	ch, cancel := c.bus.Subscribe()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if evt.Kind == events.KindReady || evt.Kind == events.KindUnready {
					c.ObserveReadiness()
				}
			}
		}
	}()
}

// Wait blocks until the background readiness-observer goroutine started
// by Start has exited.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// AddBot appends a bot to the pool and recomputes aggregate readiness, so
// a bot that is already ready when added raises the ready edge. Only valid
// during startup, before WaitForInitialization returns.
func (c *Controller) AddBot(b *bot.Bot) {
	c.mu.Lock()
	c.bots = append(c.bots, b)
	c.mu.Unlock()
	metrics.BotsTotal.Inc()
	c.ObserveReadiness()
}

// WaitForInitialization blocks until the fleet is considered started:
// at least one bot is ready, every bot has attempted login at least
// once, or timeout elapses. It never returns an error.
func (c *Controller) WaitForInitialization(ctx context.Context, timeout time.Duration) {
	ch, cancel := c.bus.Subscribe()
	defer cancel()
	defer c.bus.Publish(events.Event{Kind: events.KindInitializationDone, Timestamp: c.clk.Now()})

	deadline := c.clk.After(timeout)
	ticker := c.clk.After(20 * time.Millisecond)
	for {
		if c.getReadyCount() > 0 || c.allAttemptedLogin() {
			return
		}
		select {
		case <-ch:
			if c.getReadyCount() > 0 {
				return
			}
		case <-ticker:
			ticker = c.clk.After(20 * time.Millisecond)
			if c.allAttemptedLogin() {
				return
			}
		case <-deadline:
			c.log.Warn("controller: initialization timeout elapsed")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) allAttemptedLogin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bots) == 0 {
		return false
	}
	for _, b := range c.bots {
		st := b.GetStatus()
		if st.State == bot.StateInit {
			return false
		}
	}
	return true
}

// LookupInspect dispatches link to a free ready bot, chosen by shuffling
// the bot list (Fisher-Yates) and returning the first ready, idle
// candidate. Shuffling prevents head-of-line pinning across dispatches.
func (c *Controller) LookupInspect(ctx context.Context, link inspect.Link) (inspect.ItemInfo, error) {
	b := c.pickReadyBot()
	if b == nil {
		metrics.DispatchFailuresTotal.Inc()
		return inspect.ItemInfo{}, ErrNoBotsAvailable
	}
	return b.SendInspect(ctx, link)
}

func (c *Controller) pickReadyBot() *bot.Bot {
	c.mu.Lock()
	candidates := make([]*bot.Bot, len(c.bots))
	copy(candidates, c.bots)
	c.mu.Unlock()

	shuffle(candidates)
	for _, b := range candidates {
		if b.IsReady() {
			return b
		}
	}
	return nil
}

// shuffle performs an in-place Fisher-Yates shuffle.
func shuffle(bots []*bot.Bot) {
	for i := len(bots) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		bots[i], bots[j] = bots[j], bots[i]
	}
}

// GetReadyCount returns the number of bots currently ready and idle.
func (c *Controller) GetReadyCount() int {
	return c.getReadyCount()
}

func (c *Controller) getReadyCount() int {
	ready, _ := c.readyAndBusyCounts()
	return ready
}

// readyAndBusyCounts returns the current count of ready-and-idle bots and
// the count of busy bots, in a single pass over the pool.
func (c *Controller) readyAndBusyCounts() (ready, busy int) {
	c.mu.Lock()
	bots := make([]*bot.Bot, len(c.bots))
	copy(bots, c.bots)
	c.mu.Unlock()

	for _, b := range bots {
		if b.IsReady() {
			ready++
		}
		if b.IsBusy() {
			busy++
		}
	}
	return ready, busy
}

// GetStatus returns a point-in-time snapshot of every bot in the pool.
func (c *Controller) GetStatus() []Status {
	c.mu.Lock()
	bots := make([]*bot.Bot, len(c.bots))
	copy(bots, c.bots)
	c.mu.Unlock()

	statuses := make([]Status, 0, len(bots))
	for _, b := range bots {
		statuses = append(statuses, b.GetStatus())
	}
	return statuses
}

// ObserveReadiness recomputes the edge-triggered service-level readiness
// latch (I5/P5) and publishes ready/unready exactly on transitions. Call
// this after any event that could change a bot's readiness.
func (c *Controller) ObserveReadiness() {
	readyCount, busyCount := c.readyAndBusyCounts()
	metrics.BotsReady.Set(float64(readyCount))
	metrics.BotsBusy.Set(float64(busyCount))

	anyReady := readyCount > 0

	c.mu.Lock()
	wasReady := c.ready
	c.ready = anyReady
	c.mu.Unlock()

	if anyReady && !wasReady {
		c.bus.Publish(events.Event{Kind: events.KindReady, Timestamp: c.clk.Now()})
	} else if !anyReady && wasReady {
		c.bus.Publish(events.Event{Kind: events.KindUnready, Timestamp: c.clk.Now()})
	}
}

// Destroy tears down every bot in the pool, blocking until each has
// released its resources.
func (c *Controller) Destroy() {
	c.mu.Lock()
	bots := make([]*bot.Bot, len(c.bots))
	copy(bots, c.bots)
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, b := range bots {
		wg.Add(1)
		go func(b *bot.Bot) {
			defer wg.Done()
			b.Destroy()
		}(b)
	}
	wg.Wait()
}

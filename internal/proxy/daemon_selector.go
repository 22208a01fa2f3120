package proxy

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/Will-Luck/inspectbot/internal/clock"
	"github.com/Will-Luck/inspectbot/internal/logging"
	"github.com/Will-Luck/inspectbot/internal/metrics"
)

// DaemonSelector selects egress proxies by querying a Clash-compatible
// proxy control-plane daemon and issuing switch commands (§4.2 Algorithm).
type DaemonSelector struct {
	client *clashClient
	clock  clock.Clock
	log    *logging.Logger

	cooldown  time.Duration
	httpPort  int
	socksPort int

	mu         sync.Mutex
	current    string
	lastSwitch time.Time
}

// NewDaemonSelector constructs a DaemonSelector against a Clash-compatible
// control-plane API at baseURL.
func NewDaemonSelector(baseURL, secret string, httpPort int, cooldown time.Duration, clk clock.Clock, log *logging.Logger) *DaemonSelector {
	return &DaemonSelector{
		client:    newClashClient(baseURL, secret),
		clock:     clk,
		log:       log,
		cooldown:  cooldown,
		httpPort:  httpPort,
		socksPort: httpPort + 1,
	}
}

// PickRandom implements the daemon-backed algorithm in §4.2.
func (d *DaemonSelector) PickRandom(ctx context.Context) Binding {
	d.mu.Lock()
	sinceLast := d.clock.Since(d.lastSwitch)
	withinCooldown := !d.lastSwitch.IsZero() && sinceLast < d.cooldown
	d.mu.Unlock()
	if withinCooldown {
		return Binding{}
	}

	candidates, err := d.client.listCandidates(ctx)
	if err != nil {
		d.log.Warn("proxy: failed to list candidates", "error", err)
		return Binding{}
	}
	if len(candidates) == 0 {
		return Binding{}
	}

	d.mu.Lock()
	current := d.current
	d.mu.Unlock()

	chosen := candidates[rand.IntN(len(candidates))]
	if chosen == current && len(candidates) > 1 {
		// Anti-stickiness: resample from the complement.
		complement := make([]string, 0, len(candidates)-1)
		for _, c := range candidates {
			if c != current {
				complement = append(complement, c)
			}
		}
		chosen = complement[rand.IntN(len(complement))]
	}

	if err := d.client.switchTo(ctx, chosen); err != nil {
		d.log.Warn("proxy: failed to switch", "proxy", chosen, "error", err)
		metrics.ProxySwitchesTotal.WithLabelValues("error").Inc()
		return Binding{}
	}

	d.mu.Lock()
	d.current = chosen
	d.lastSwitch = d.clock.Now()
	d.mu.Unlock()

	metrics.ProxySwitchesTotal.WithLabelValues("success").Inc()
	return d.bindingFor(chosen)
}

// PickForBot is not supported in daemon mode; it delegates to PickRandom
// since daemon mode has no per-bot precomputed mapping.
func (d *DaemonSelector) PickForBot(ctx context.Context, _ int, _ string) Binding {
	return d.PickRandom(ctx)
}

// CurrentName returns the currently selected upstream's name, or "".
func (d *DaemonSelector) CurrentName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *DaemonSelector) bindingFor(name string) Binding {
	return Binding{
		HTTPProxy:  addr("http", d.httpPort),
		SocksProxy: addr("socks5", d.socksPort),
		Name:       name,
	}
}

func addr(scheme string, port int) string {
	return scheme + "://127.0.0.1:" + strconv.Itoa(port)
}

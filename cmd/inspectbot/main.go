// Command inspectbot runs a fleet of logged-in Steam game-client bots that
// answer CS:GO item-inspect queries against the Game Coordinator.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Will-Luck/inspectbot/internal/bot"
	"github.com/Will-Luck/inspectbot/internal/clock"
	"github.com/Will-Luck/inspectbot/internal/config"
	"github.com/Will-Luck/inspectbot/internal/controller"
	"github.com/Will-Luck/inspectbot/internal/events"
	"github.com/Will-Luck/inspectbot/internal/logging"
	"github.com/Will-Luck/inspectbot/internal/metrics"
	"github.com/Will-Luck/inspectbot/internal/proxy"
	"github.com/Will-Luck/inspectbot/internal/session"
	"github.com/Will-Luck/inspectbot/internal/store"
	"github.com/Will-Luck/inspectbot/internal/web"
)

// version and commit are set at build time via ldflags:
//
//	-X main.version=$(VERSION) -X main.commit=$(COMMIT)
var version = "dev"
var commit = "unknown"

func versionString() string {
	if commit != "" && commit != "unknown" {
		return version + " (" + commit + ")"
	}
	return version
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogJSON)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	fmt.Println("inspectbot " + versionString())
	fmt.Println("=============================================")
	fmt.Printf("INSPECTBOT_ACCOUNTS_FILE=%s\n", cfg.AccountsFile)
	fmt.Printf("INSPECTBOT_LISTEN_ADDR=%s\n", cfg.ListenAddr)
	fmt.Printf("INSPECTBOT_PROXY_ASSIGNMENT_MODE=%s\n", cfg.ProxyAssignmentMode)
	fmt.Printf("INSPECTBOT_DB_PATH=%s\n", cfg.DBPath)

	accounts, err := config.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		log.Error("failed to load accounts", "error", err)
		os.Exit(1)
	}
	if len(accounts) == 0 {
		log.Error("accounts file lists no accounts")
		os.Exit(1)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	clk := clock.Real{}
	bus := events.New()

	selector := buildProxySelector(cfg, db, clk, log)

	ctrl := controller.New(clk, log, bus)
	ctrl.Start(ctx)

	for i, acct := range accounts {
		// No real Steam/GC wire protocol ships with this implementation (it
		// is an external capability, see internal/session). Each bot is
		// bound to its own Fake session client until a real one is wired in.
		client := session.NewFake()
		b := bot.New(i, cfg, client, selector, clk, log, bus, nil)
		ctrl.AddBot(b)
		if loginErr := b.Login(ctx, acct.Username, acct.Password, acct.AuthSecret); loginErr != nil {
			log.Error("failed to start bot login", "bot_index", i, "username", acct.Username, "error", loginErr)
		}
	}

	srv := web.NewServer(ctrl, log, cfg.MetricsEnabled)

	go func() {
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("web server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if cfg.MetricsTextfile != "" {
		go runTextfileCollector(ctx, cfg.MetricsTextfile, log)
	}

	log.Info("inspectbot started", "version", version, "commit", commit, "accounts", len(accounts))

	ctrl.WaitForInitialization(ctx, cfg.InitializationTimeout)
	log.Info("fleet initialization barrier cleared", "ready", ctrl.GetReadyCount())

	<-ctx.Done()
	log.Info("shutting down")
	ctrl.Destroy()
	ctrl.Wait()

	log.Info("inspectbot shutdown complete")
}

// buildProxySelector constructs the egress proxy selector per
// INSPECTBOT_PROXY_ASSIGNMENT_MODE: a Clash-daemon-backed selector, or a
// fixed round-robin mapping persisted in db.
func buildProxySelector(cfg *config.Config, db *store.Store, clk clock.Clock, log *logging.Logger) proxy.Selector {
	switch cfg.ProxyAssignmentMode {
	case "daemon":
		return proxy.NewDaemonSelector(cfg.ClashAPIURL, cfg.ClashSecret, cfg.ProxyPort, cfg.ProxySwitchCooldown, clk, log)
	case "round_robin":
		names := proxy.ParseProxyNames(cfg.ProxyNames)
		return proxy.NewRoundRobinSelector(names, cfg.ProxyPort, db)
	default:
		return proxy.NewRoundRobinSelector(nil, cfg.ProxyPort, db)
	}
}

// runTextfileCollector periodically writes the node_exporter textfile
// collector format to path, for hosts that scrape metrics off disk rather
// than over /metrics.
func runTextfileCollector(ctx context.Context, path string, log *logging.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := metrics.WriteTextfile(path); err != nil {
				log.Warn("metrics textfile write failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

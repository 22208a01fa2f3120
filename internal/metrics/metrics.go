// Package metrics exposes Prometheus gauges/counters/histograms for the
// bot fleet: pool readiness, login/reconnect attempts, and inspect latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BotsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspectbot_bots_total",
		Help: "Total number of bots configured in the fleet.",
	})
	BotsReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspectbot_bots_ready",
		Help: "Number of bots currently ready to serve an inspect request.",
	})
	BotsBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspectbot_bots_busy",
		Help: "Number of bots currently busy (serving a request or in cooldown).",
	})
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspectbot_login_attempts_total",
		Help: "Total number of login attempts by outcome.",
	}, []string{"outcome"})
	GcReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspectbot_gc_reconnects_total",
		Help: "Total number of GC reconnection attempts by outcome.",
	}, []string{"outcome"})
	InspectRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspectbot_inspect_requests_total",
		Help: "Total number of inspect requests by outcome.",
	}, []string{"outcome"})
	InspectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inspectbot_inspect_duration_seconds",
		Help:    "Duration from sendInspect to resolution (success or failure).",
		Buckets: prometheus.DefBuckets,
	})
	ProxySwitchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspectbot_proxy_switches_total",
		Help: "Total number of proxy switch attempts by outcome.",
	}, []string{"outcome"})
	DispatchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspectbot_dispatch_failures_total",
		Help: "Total number of lookupInspect calls that failed with NoBotsAvailable.",
	})
)

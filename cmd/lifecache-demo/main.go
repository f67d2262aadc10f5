package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lifecache/lifecache/pkg/config"
	"github.com/lifecache/lifecache/pkg/export"
	"github.com/lifecache/lifecache/pkg/qos"
)

// engineHolder swaps the live engine atomically on config hot-reload.
type engineHolder struct {
	current atomic.Pointer[qos.Engine]
}

func (h *engineHolder) get() *qos.Engine { return h.current.Load() }

// Describe and Collect delegate to a per-engine collector so a reload
// never disturbs the registered metrics surface.
func (h *engineHolder) Describe(ch chan<- *prometheus.Desc) {
	export.NewCollector(h.get()).Describe(ch)
}

func (h *engineHolder) Collect(ch chan<- prometheus.Metric) {
	export.NewCollector(h.get()).Collect(ch)
}

func main() {
	configPath := flag.String("config", "config.example.yaml", "path to config file")
	listenAddr := flag.String("listen", ":8080", "HTTP listen address for /snapshot and /metrics")
	evalInterval := flag.Duration("interval", 5*time.Second, "snapshot evaluation interval")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("lifecache-demo starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	engine, err := cfg.Build()
	if err != nil {
		slog.Error("failed to build engine", "err", err)
		os.Exit(1)
	}
	slog.Info("engine built",
		"signals", len(cfg.Signals),
		"derived_metrics", len(cfg.DerivedMetrics),
		"rules", len(cfg.Evaluator.Rules),
		"decisions", len(cfg.Decisions),
	)

	holder := &engineHolder{}
	holder.current.Store(engine)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Hot-reload: a valid new config swaps in a fresh engine; sample
	// history restarts from empty.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			rebuilt, err := updated.Build()
			if err != nil {
				slog.Error("reloaded config does not build, keeping previous engine", "err", err)
				return
			}
			holder.current.Store(rebuilt)
			slog.Info("engine rebuilt from updated config")
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(holder)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(holder.get().Evaluate()); err != nil {
			slog.Warn("snapshot encode failed", "err", err)
		}
	})
	server := &http.Server{Addr: *listenAddr, Handler: mux}
	go func() {
		slog.Info("http listening", "addr", *listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "err", err)
			cancel()
		}
	}()

	go simulateWorkload(ctx, holder)

	// Evaluation loop: log one snapshot per interval.
	go func() {
		ticker := time.NewTicker(*evalInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := holder.get().Evaluate()
				slog.Info("snapshot",
					"health", snap.HealthScore,
					"status", snap.Status,
					"decisions", snap.Decisions,
					"metrics", snap.Metrics,
				)
			}
		}
	}()

	<-ctx.Done()
	slog.Info("lifecache-demo shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

// workload phases cycle healthy → degraded → critical → recovering, each
// lasting phaseLength, so every status band and decision shape shows up
// within two minutes of runtime.
const phaseLength = 30 * time.Second

type phase struct {
	name      string
	baseMs    float64
	jitterMs  float64
	errorRate float64
}

var phases = []phase{
	{name: "healthy", baseMs: 60, jitterMs: 40, errorRate: 0.005},
	{name: "degraded", baseMs: 220, jitterMs: 80, errorRate: 0.03},
	{name: "critical", baseMs: 550, jitterMs: 150, errorRate: 0.15},
	{name: "recovering", baseMs: 140, jitterMs: 60, errorRate: 0.01},
}

// simulateWorkload records synthetic request latencies and outcomes at
// ~50 requests/second.
func simulateWorkload(ctx context.Context, holder *engineHolder) {
	start := time.Now()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	lastPhase := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idx := int(time.Since(start)/phaseLength) % len(phases)
			p := phases[idx]
			if idx != lastPhase {
				slog.Info("workload phase", "phase", p.name)
				lastPhase = idx
			}

			engine := holder.get()
			latency := p.baseMs + (rand.Float64()*2-1)*p.jitterMs
			engine.Record("latency_ms", latency)
			if rand.Float64() < p.errorRate {
				engine.Record("errors", 1)
			} else {
				engine.Record("successes", 1)
			}
		}
	}
}

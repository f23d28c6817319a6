package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/jpamaralw/bsb-compute-project/config"
	"github.com/jpamaralw/bsb-compute-project/fleet/clock"
	"github.com/jpamaralw/bsb-compute-project/fleet/core"
	"github.com/jpamaralw/bsb-compute-project/fleet/journal"
	"github.com/jpamaralw/bsb-compute-project/fleet/worker"
	"github.com/jpamaralw/bsb-compute-project/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load(getEnv("CONFIG", "config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// POLICY from the environment overrides the config file.
	policyStr := getEnv("POLICY", cfg.Policy)
	policy, ok := core.ParsePolicy(policyStr)
	if !ok {
		log.Warnf("unknown policy %q, falling back to %s", policyStr, core.RoundRobin)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	// Serve prometheus metrics for the duration of the run, if configured.
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		for _, c := range metrics.Collectors() {
			registry.MustRegister(c)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			log.Infof("metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		jnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer jnl.Close()
	}

	descs := make([]worker.Descriptor, len(cfg.Servers))
	for i, s := range cfg.Servers {
		descs[i] = worker.Descriptor{ID: s.ID, Capacity: s.Capacity}
	}
	requests := make([]core.RequestSpec, len(cfg.Requests))
	for i, r := range cfg.Requests {
		requests[i] = core.RequestSpec{ID: r.ID, Kind: r.Kind, Priority: r.Priority, NominalCost: r.Cost}
	}

	orch, err := core.New(descs, core.Config{
		Policy:             policy,
		MigrationThreshold: cfg.MigrationThreshold,
		Seed:               seed,
		Journal:            jnl,
	}, clock.NewWall(1))
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Info("interrupted, abandoning run")
		os.Exit(1)
	}()

	log.Infof("starting run: %d servers, %d requests, policy %s, seed %d",
		len(descs), len(requests), policy, seed)

	result, err := orch.Run(requests)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	summary := metrics.Summarize(result.Records, result.Policy.String(),
		result.Elapsed, result.TotalCapacity, result.MigrationEvents)
	fmt.Print(summary)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

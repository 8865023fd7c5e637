// Package main is the entry point for the listgate admission worker.
// The worker is the single logical consumer of the admission queue. It owns
// the gate sequence, throttle pacing, retries and downstream dispatch.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listgate/internal/config"
	"listgate/internal/engine"
	"listgate/internal/images"
	"listgate/internal/logger"
	"listgate/internal/memory"
	"listgate/internal/observability"
	"listgate/internal/pricing"
	"listgate/internal/ramp"
	"listgate/internal/store/postgres"
	"listgate/internal/threshold"
	"listgate/internal/throttle"
)

func main() {
	metricsAddr := flag.String("metrics-addr", ":6162", "Address for the worker metrics server")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pg.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "listgate-worker", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	slogger := logger.New("worker")

	var publisher engine.Publisher
	if cfg.PublishURL != "" {
		publisher = engine.NewHTTPPublisher(cfg.PublishURL, cfg.PublishTimeout)
		log.Printf("Publishing listings to %s", cfg.PublishURL)
	} else {
		publisher = &engine.LogPublisher{Log: slogger}
		log.Println("No PUBLISH_URL configured, listings will be logged only")
	}

	var enhancer images.Enhancer = images.Disabled{}
	if cfg.ImageEnhanceURL != "" {
		enhancer = images.NewHTTP(cfg.ImageEnhanceURL, "http", cfg.PublishTimeout)
		log.Printf("Image enhancement via %s", cfg.ImageEnhanceURL)
	}

	agent := engine.New(
		pg,
		pg,
		memory.New(pg, cfg.DemotionFloor, slogger),
		threshold.New(pg, cfg.Threshold, slogger),
		ramp.New(pg, pg, cfg.PhaseTable, cfg.SteadyState, slogger),
		throttle.New(pg, pg, cfg.Throttle, slogger),
		publisher,
		enhancer,
		pricing.DefaultParams(),
		engine.AgentConfig{
			PollInterval:    cfg.WorkerPollInterval,
			MaxBackoff:      cfg.WorkerMaxBackoff,
			MaxAttempts:     cfg.MaxAttempts,
			DispatchTimeout: cfg.PublishTimeout,
		},
		slogger,
	)

	log.Println("Admission worker started")
	go agent.Run(ctx)

	// Janitor: expired counters accumulate one row per (name, period) and are
	// invisible to reads, so a slow sweep is enough.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := pg.PurgeExpired(ctx); err != nil {
					slogger.Warn("counter purge failed", "error", err)
				} else if n > 0 {
					slogger.Info("purged expired counters", "rows", n)
				}
			}
		}
	}()

	// Start a dedicated metrics server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Printf("Worker metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	<-agent.Done()
}

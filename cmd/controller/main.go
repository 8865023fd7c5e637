// Package main is the entry point for the listgate controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listgate/internal/config"
	"listgate/internal/controller"
	"listgate/internal/controller/handlers"
	"listgate/internal/ingest"
	"listgate/internal/logger"
	"listgate/internal/memory"
	"listgate/internal/observability"
	"listgate/internal/ramp"
	"listgate/internal/store/postgres"
	"listgate/internal/threshold"
	"listgate/internal/throttle"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	// Load Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup Database
	ctx := context.Background()
	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pg.Close()

	// Run migrations if requested
	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(pg.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "listgate-controller", cfg.OTELEndpoint)
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

	// Use an Observable Gauge (Async) that queries the DB only when scraped.
	meter := otel.Meter("listgate-controller")
	_, err = meter.Int64ObservableGauge("listgate.queue.depth",
		metric.WithDescription("Current number of jobs in the admission queue"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := pg.Depth(ctx)
			if err != nil {
				log.Printf("Failed to read queue depth: %v", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register queue depth metric: %v", err)
	}

	slogger := logger.New("controller")

	deps := handlers.Deps{
		Threshold: threshold.New(pg, cfg.Threshold, slogger),
		Throttle:  throttle.New(pg, pg, cfg.Throttle, slogger),
		Ramp:      ramp.New(pg, pg, cfg.PhaseTable, cfg.SteadyState, slogger),
		Memory:    memory.New(pg, cfg.DemotionFloor, slogger),
		Ingestor:  ingest.New(pg, slogger),
		Queue:     pg,
		Switches:  pg,
		Counters:  pg,
		Pinger:    pg,
		Log:       slogger,
	}

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(controller.Options{
		Addr:            addr,
		OperatorToken:   cfg.OperatorToken,
		IngestRateLimit: cfg.IngestRateLimit,
		MetricsHandler:  metricsHandler,
	}, deps)

	go func() {
		log.Printf("Listgate Controller starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}

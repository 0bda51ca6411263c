// The sweeper requeues photos and selfies whose ingestion task was lost,
// typically after a crash between the database insert and the publish.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/your-org/facematch/internal/config"
	"github.com/your-org/facematch/internal/ingest"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facematch sweeper",
		"interval", cfg.Sweeper.Interval,
		"stale_threshold", cfg.Sweeper.StaleThreshold,
	)

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := ingest.NewSweeper(db, producer, cfg.Sweeper.Interval, cfg.Sweeper.StaleThreshold)
	go sweeper.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("sweeper stopped")
}

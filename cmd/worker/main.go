package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facematch/internal/config"
	"github.com/your-org/facematch/internal/ingest"
	"github.com/your-org/facematch/internal/match"
	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/internal/vision"
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

	slog.Info("starting facematch worker",
		"photo_workers", cfg.Vision.WorkerCount,
		"selfie_workers", cfg.Matching.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(vision.ONNXLibPath())
	if err := vision.InitRuntime(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer vision.DestroyRuntime()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Face extraction models
	extractor, err := vision.NewONNXExtractor(cfg.Vision)
	if err != nil {
		slog.Error("init face extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	var index match.Index
	switch cfg.Matching.IndexDriver {
	case "memory":
		mem := match.NewMemoryIndex()
		if err := match.WarmFromStore(context.Background(), db, mem); err != nil {
			slog.Error("warm in-memory index", "error", err)
			os.Exit(1)
		}
		index = mem
	default:
		index = match.NewStoreIndex(db)
	}
	resolver := match.NewResolver(index, cfg.Matching.SimilarityThreshold)

	pipeline := ingest.NewPipeline(db, minioStore, extractor, resolver, index, producer, ingest.Config{
		ExtractTimeout: cfg.Vision.ExtractTimeout,
		RetryAttempts:  cfg.Matching.RetryAttempts,
		RetryBackoff:   cfg.Matching.RetryBackoff,
	})

	slog.Info("ingestion pipeline initialized",
		"index_driver", cfg.Matching.IndexDriver,
		"threshold", cfg.Matching.SimilarityThreshold,
	)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeIngest(ctx, "photo-workers", queue.PhotoSubjectBase+".>", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.PhotoTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal photo task", "error", err)
			return nil // Don't retry on unmarshal errors
		}
		if err := pipeline.ProcessPhoto(ctx, task); err != nil {
			return fmt.Errorf("process photo %s: %w", task.PhotoID, err)
		}
		return nil
	}, cfg.Vision.WorkerCount)
	if err != nil {
		slog.Error("start photo consumer", "error", err)
		os.Exit(1)
	}

	err = consumer.ConsumeIngest(ctx, "selfie-workers", queue.SelfieSubjectBase+".>", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.SelfieTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal selfie task", "error", err)
			return nil
		}
		if err := pipeline.ProcessSelfie(ctx, task); err != nil {
			return fmt.Errorf("process selfie %s: %w", task.SelfieID, err)
		}
		return nil
	}, cfg.Matching.WorkerCount)
	if err != nil {
		slog.Error("start selfie consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Server.Port+1)
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Warn("metrics server error", "error", err)
		}
	}()

	// Queue depth gauge
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			if depth, err := producer.QueueDepth(ctx); err == nil {
				observability.QueueDepth.Set(float64(depth))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	slog.Info("worker stopped")
}

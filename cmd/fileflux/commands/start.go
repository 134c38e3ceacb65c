package commands

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/api"
	"github.com/fileflux/fileflux/pkg/api/handlers"
	"github.com/fileflux/fileflux/pkg/catalog"
	"github.com/fileflux/fileflux/pkg/config"
	"github.com/fileflux/fileflux/pkg/ingest"
	"github.com/fileflux/fileflux/pkg/jobqueue"
	"github.com/fileflux/fileflux/pkg/metrics"
	"github.com/fileflux/fileflux/pkg/records"
	"github.com/fileflux/fileflux/pkg/store/metadata/mongo"
	"github.com/fileflux/fileflux/pkg/store/object/s3"
	"github.com/fileflux/fileflux/pkg/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the FileFlux server",
	Long: `Start the HTTP server and, unless disabled, the background processing
worker. Configuration comes from environment variables and an optional
config file.

Examples:
  # Start with environment configuration
  S3_BUCKET=uploads MONGODB_URI=mongodb://localhost:27017/fileflux fileflux start

  # Start the HTTP surface only, workers run elsewhere
  ENABLE_WORKER=false fileflux start

  # Start with a config file
  fileflux start --config /etc/fileflux/config.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stdout",
	}); err != nil {
		return err
	}

	logger.Info("fileflux starting", "version", Version)
	metrics.Init(cfg.Metrics.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metadata store: connection, ping, index creation.
	store, err := mongo.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return fmt.Errorf("metadata store initialization failed: %w", err)
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("metadata store close error", logger.KeyError, err)
		}
	}()

	// Object store: client, bucket probe.
	s3Client, err := s3.NewClient(ctx, cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.Endpoint, cfg.S3.ForcePathStyle)
	if err != nil {
		return fmt.Errorf("object store initialization failed: %w", err)
	}
	objects, err := s3.New(ctx, s3.Config{
		Client:           s3Client,
		Bucket:           cfg.S3.Bucket,
		PartSize:         int(cfg.S3.PartSize),
		MaxParallelParts: cfg.S3.MaxParallel,
	})
	if err != nil {
		return fmt.Errorf("object store initialization failed: %w", err)
	}

	files := catalog.New(store.Files())
	queue := jobqueue.New(store.Jobs(), jobqueue.Config{
		LockTimeout:    cfg.Jobs.LockTimeout(),
		StaleThreshold: cfg.Jobs.StaleThreshold(),
		MaxAttempts:    cfg.Jobs.MaxAttempts,
	})
	sink := records.New(store.ParsedRecords())
	ingestor := ingest.New(objects, files, ingest.Config{
		MaxFileSize:  cfg.Upload.MaxFileSize.Int64(),
		AllowedTypes: cfg.Upload.AllowedTypes,
	})

	// Orphaned jobs from a previous crash must return to the queue before
	// any worker starts claiming.
	requeued, failed, err := queue.RecoverStale(ctx)
	if err != nil {
		return fmt.Errorf("stale job recovery failed: %w", err)
	}
	metrics.ObserveJobsRequeued(requeued)
	if requeued > 0 || failed > 0 {
		logger.Info("stale job recovery finished", "requeued", requeued, "failed", failed)
	}

	var wg sync.WaitGroup
	if cfg.Worker.Enabled {
		w := worker.New(queue, files, objects, sink, worker.Config{
			WorkerID:     cfg.Worker.ID,
			PollInterval: cfg.Jobs.PollInterval(),
			BatchSize:    cfg.Jobs.BatchSize,
			WritePause:   cfg.Jobs.WritePause(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	} else {
		logger.Info("background worker disabled")
	}

	server := api.NewServer(api.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, api.Deps{
		Ingestor: ingestor,
		Files:    files,
		Queue:    queue,
		Version:  Version,
		Checkers: map[string]handlers.Checker{
			"mongodb": store.Ping,
			"s3":      objects.Probe,
		},
	})

	err = server.Start(ctx)

	// Stop claiming and wait for the in-flight job's current batch; the
	// job itself is covered by lease expiry if the process dies first.
	stop()
	wg.Wait()

	if err != nil {
		return err
	}
	logger.Info("fileflux stopped")
	return nil
}

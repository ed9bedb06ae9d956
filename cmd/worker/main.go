package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noahpengding/peng-finance/internal/config"
	"github.com/noahpengding/peng-finance/internal/jobs"
	"github.com/noahpengding/peng-finance/internal/jobs/inmemory"
	"github.com/noahpengding/peng-finance/internal/logger"
	"github.com/noahpengding/peng-finance/internal/objectstore"
	"github.com/noahpengding/peng-finance/internal/snapshot"
	"github.com/noahpengding/peng-finance/internal/store/postgres"
)

func main() {
	log := logger.New()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	storage := postgres.NewStorage(pool)

	objects := objectstore.NewGCSStore(cfg.Bucket)
	snapshots := snapshot.NewService(storage, storage, storage, storage, objects, cfg.SnapshotPrefix)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(cfg.SyncQueueSize, 2, cfg.SyncMaxRetries, jobStore)

	log.Info().Msg("Starting sync worker")

	handler := func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.SyncJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("reason", syncJob.Reason).
			Str("username", syncJob.Username).
			Msg("Processing sync job")

		if err := snapshots.Sync(ctx); err != nil {
			log.Error().
				Err(err).
				Str("job_id", syncJob.JobID).
				Msg("Snapshot sync failed")
			return err
		}
		return nil
	}

	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Sync worker started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down sync worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := queue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Sync worker exited")
}

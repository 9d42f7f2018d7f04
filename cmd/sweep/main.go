package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/database"
	"github.com/stemsi/exstem-grading/internal/event"
	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/logger"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stemsi/exstem-grading/internal/worker"
)

// sweep runs a single expiry pass and exits. Intended for external
// schedulers such as cron or a Kubernetes CronJob.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	nc, err := database.NewNATSConn(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	var publisher event.Publisher = event.Nop{}
	if nc != nil {
		defer nc.Close()
		publisher = event.NewNATSPublisher(nc, cfg.NATSSubjectPrefix, log)
	}

	submissionRepo := repository.NewSubmissionRepository(pool)
	contentRepo := repository.NewContentRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)

	gradingService := service.NewGradingService(submissionRepo, contentRepo, assignmentRepo, grading.NewEngine(), log,
		service.WithPublisher(publisher),
	)
	sweeper := worker.NewExpirySweeper(submissionRepo, contentRepo, gradingService, cfg.GracePeriod, cfg.SweepBatchSize, log)

	stats, err := sweeper.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Sweep aborted")
		os.Exit(1)
	}

	log.Info().
		Int("scanned", stats.Scanned).
		Int("graded", stats.Graded).
		Int("failed", stats.Failed).
		Msg("Sweep finished")
	if stats.Failed > 0 {
		os.Exit(2)
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

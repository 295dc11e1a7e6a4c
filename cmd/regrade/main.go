package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gema-exam-grader/internal/bootstrap"
	"github.com/noah-isme/gema-exam-grader/internal/config"
	"github.com/noah-isme/gema-exam-grader/internal/database"
	"github.com/noah-isme/gema-exam-grader/internal/observability"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
	"github.com/noah-isme/gema-exam-grader/internal/service"
)

func main() {
	os.Exit(run())
}

// run performs one sweep and returns the process exit code, so deferred cleanup runs first.
func run() int {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Printf("failed to load configuration: %v", err)
		return 1
	}

	logger, logCloser := observability.NewLogger(bootstrap.LogConfig(cfg), os.Stderr)
	defer logCloser.Close()
	logger = logger.With().Str("process", "regrade").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return 1
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to redis")
			return 1
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, sweeping without the cross-process lock")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-regrade", logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable")
		} else {
			defer natsConn.Drain()
		}
	}

	engine, err := bootstrap.Engine(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to configure grading engine")
		return 1
	}

	examRepo := repository.NewExamRepository(db)
	submissionRepo := repository.NewExamSubmissionRepository(db)
	notifier := bootstrap.Notifier(cfg, redisClient, natsConn, repository.NewStudentRepository(db), logger)
	grader := service.NewGradingService(submissionRepo, examRepo, engine, notifier, cfg.GradingStaleAfter, logger)
	sweeper := service.NewRegradeService(submissionRepo, grader, redisClient, bootstrap.RegradeConfig(cfg), logger)

	report, err := sweeper.Sweep(ctx)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if encodeErr := encoder.Encode(report); encodeErr != nil {
		logger.Error().Err(encodeErr).Msg("failed to write report")
	}

	if err != nil {
		if errors.Is(err, service.ErrSweepInProgress) {
			logger.Warn().Msg("another sweep holds the lock")
		} else {
			logger.Error().Err(err).Msg("regrade sweep stopped early")
		}
		return 1
	}
	return 0
}

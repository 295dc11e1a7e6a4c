package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-grader/internal/bootstrap"
	"github.com/noah-isme/gema-exam-grader/internal/config"
	"github.com/noah-isme/gema-exam-grader/internal/database"
	"github.com/noah-isme/gema-exam-grader/internal/handler"
	"github.com/noah-isme/gema-exam-grader/internal/middleware"
	"github.com/noah-isme/gema-exam-grader/internal/observability"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
	"github.com/noah-isme/gema-exam-grader/internal/router"
	"github.com/noah-isme/gema-exam-grader/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, logCloser := observability.NewLogger(bootstrap.LogConfig(cfg), os.Stdout)
	defer logCloser.Close()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, grade events go to redis only")
		} else {
			defer natsConn.Drain()
		}
	}

	engine, err := bootstrap.Engine(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure grading engine")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	examRepo := repository.NewExamRepository(db)
	submissionRepo := repository.NewExamSubmissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	notifier := bootstrap.Notifier(cfg, redisClient, natsConn, studentRepo, logger)
	gradingService := service.NewGradingService(submissionRepo, examRepo, engine, notifier, cfg.GradingStaleAfter, logger)
	regradeService := service.NewRegradeService(submissionRepo, gradingService, redisClient, bootstrap.RegradeConfig(cfg), logger)
	examService := service.NewExamService(examRepo, validate, logger)
	examSubmissionService := service.NewExamSubmissionService(examRepo, submissionRepo, gradingService, validate, logger)
	adminGradingService := service.NewAdminGradingService(submissionRepo, gradingService, validate, logger)

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:          &logger,
		TrackedPrefixes: []string{"/api/v2/exams", "/api/admin"},
	})
	router.Register(app, cfg, router.Dependencies{
		ExamHandler:           handler.NewExamHandler(examService, logger),
		ExamSubmissionHandler: handler.NewExamSubmissionHandler(examSubmissionService, logger),
		AdminGradingHandler:   handler.NewAdminGradingHandler(adminGradingService, regradeService, logger),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:          probes,
		SubmitLimiter:         middleware.RateLimit("exam_submit", 5, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

// Package bootstrap assembles the grading components shared by the API server and the regrade CLI.
package bootstrap

import (
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-grader/internal/config"
	"github.com/noah-isme/gema-exam-grader/internal/grading"
	"github.com/noah-isme/gema-exam-grader/internal/models"
	"github.com/noah-isme/gema-exam-grader/internal/observability"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
	"github.com/noah-isme/gema-exam-grader/internal/service"
	"github.com/noah-isme/gema-exam-grader/pkg/ai"
	"github.com/noah-isme/gema-exam-grader/pkg/mailer"
)

// LogConfig maps configuration onto logger settings.
func LogConfig(cfg config.Config) observability.LogConfig {
	return observability.LogConfig{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}
}

// RegradeConfig maps configuration onto sweeper settings.
func RegradeConfig(cfg config.Config) service.RegradeConfig {
	return service.RegradeConfig{
		BatchSize: cfg.SweepBatchSize,
		Interval:  cfg.SweepInterval,
		LockKey:   cfg.SweepLockKey(),
		LockTTL:   cfg.SweepLockTTL,
	}
}

// Engine builds the scoring engine. With code review enabled, coding answers go through the
// OpenAI reviewer and degrade according to the configured fallback mode.
func Engine(cfg config.Config, logger zerolog.Logger) (*grading.Engine, error) {
	if !cfg.CodeReviewEnabled {
		return grading.NewEngine(cfg.GradingPolicy), nil
	}

	grader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.AIModel,
		MaxTokens: cfg.AIMaxTokens,
		Timeout:   cfg.AITimeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	heuristic := grading.NewHeuristicScorer(cfg.GradingPolicy)
	reviewer := grading.NewCodeQualityScorer(grader, heuristic, cfg.CodeReviewFallback, logger)
	return grading.NewEngine(cfg.GradingPolicy, grading.WithStrategy(models.QuestionTypeCoding, reviewer)), nil
}

// Notifier fans grade results out to the log, the event transports that are connected and,
// when configured, SendGrid.
func Notifier(cfg config.Config, redisClient *redis.Client, natsConn *nats.Conn, students repository.StudentRepository, logger zerolog.Logger) service.GradeNotifier {
	notifiers := []service.GradeNotifier{service.NewLogGradeNotifier(logger)}
	if redisClient != nil || natsConn != nil {
		notifiers = append(notifiers, service.NewEventGradeNotifier(redisClient, natsConn, cfg.NotificationChannel))
	}
	if cfg.EmailEnabled() {
		sender, err := mailer.NewSendGridMailer(mailer.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromName:  cfg.SendGridFromName,
			FromEmail: cfg.SendGridFromEmail,
			Timeout:   cfg.SendGridTimeout,
			Logger:    logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("grade e-mails disabled")
		} else {
			notifiers = append(notifiers, service.NewEmailGradeNotifier(sender, students))
		}
	}
	return service.NewGradeNotifier(notifiers...)
}

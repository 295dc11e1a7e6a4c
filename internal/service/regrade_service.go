package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/observability"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
)

const (
	defaultSweepBatchSize = 100
	defaultSweepLockTTL   = 10 * time.Minute
)

var (
	// ErrSweepInProgress indicates another process currently holds the sweep lock.
	ErrSweepInProgress = errors.New("regrade sweep already in progress")
	// ErrSweepLockLost indicates the sweep lock expired or was taken over mid-sweep.
	ErrSweepLockLost = errors.New("regrade sweep lock lost")
)

// releaseLockScript deletes the lock only if it still carries our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendLockScript pushes the lock expiry forward only while it still carries our token.
var extendLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RegradeConfig tunes the regrade sweeper.
type RegradeConfig struct {
	BatchSize int
	Interval  time.Duration
	LockKey   string
	LockTTL   time.Duration
}

// RegradeService re-runs grading over submissions that never reached graded.
type RegradeService interface {
	Sweep(ctx context.Context) (dto.RegradeReport, error)
}

type regradeService struct {
	submissions repository.ExamSubmissionRepository
	grader      GradingService
	redis       *redis.Client
	cfg         RegradeConfig
	logger      zerolog.Logger
}

// NewRegradeService constructs the sweeper. A nil redis client disables the cross-process lock.
func NewRegradeService(submissions repository.ExamSubmissionRepository, grader GradingService, redisClient *redis.Client, cfg RegradeConfig, logger zerolog.Logger) RegradeService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultSweepLockTTL
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "gema:grading:sweep-lock"
	}
	return &regradeService{
		submissions: submissions,
		grader:      grader,
		redis:       redisClient,
		cfg:         cfg,
		logger:      logger.With().Str("component", "regrade_service").Logger(),
	}
}

func (s *regradeService) Sweep(ctx context.Context) (dto.RegradeReport, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-exam-grader/internal/service/regrade")
	ctx, span := tracer.Start(ctx, "grading.sweep")
	defer span.End()

	report := dto.RegradeReport{Failures: []dto.RegradeFailure{}}

	ctx, release, err := s.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock_unavailable")
		return report, err
	}
	defer release()

	candidates, err := s.submissions.ListRegradeCandidates(ctx, s.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate_query_failed")
		return report, err
	}
	span.SetAttributes(attribute.Int("regrade.candidates", len(candidates)))
	s.logger.Info().Int("candidates", len(candidates)).Msg("regrade sweep started")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.cfg.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.Interval), 1)
	}

	for _, candidate := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			cause := context.Cause(ctx)
			if cause == nil {
				cause = err
			}
			s.logger.Warn().Err(cause).Int("processed", report.Total).Msg("regrade sweep interrupted")
			span.SetStatus(codes.Error, "interrupted")
			return report, cause
		}

		report.Total++
		_, err := s.grader.GradeSubmission(ctx, candidate.ID)
		switch {
		case err == nil:
			report.Success++
			observability.RegradeSubmissions().WithLabelValues("success").Inc()
		case errors.Is(err, ErrGradingState):
			report.Skipped++
			observability.RegradeSubmissions().WithLabelValues("skipped").Inc()
		default:
			report.Failed++
			report.Failures = append(report.Failures, dto.RegradeFailure{SubmissionID: candidate.ID, Reason: err.Error()})
			observability.RegradeSubmissions().WithLabelValues("failed").Inc()
			s.logger.Warn().Err(err).Uint("submission_id", candidate.ID).Msg("regrade failed")
		}
	}

	span.SetAttributes(
		attribute.Int("regrade.success", report.Success),
		attribute.Int("regrade.failed", report.Failed),
		attribute.Int("regrade.skipped", report.Skipped),
	)
	s.logger.Info().
		Int("success", report.Success).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("total", report.Total).
		Msg("regrade sweep finished")
	return report, nil
}

// acquire takes the sweep lock and keeps renewing it until release is called, so a sweep
// outlasting LockTTL keeps ownership. The returned context is cancelled with ErrSweepLockLost
// if the lock stops being ours.
func (s *regradeService) acquire(ctx context.Context) (context.Context, func(), error) {
	if s.redis == nil {
		return ctx, func() {}, nil
	}

	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, s.cfg.LockKey, token, s.cfg.LockTTL).Result()
	if err != nil {
		return ctx, nil, err
	}
	if !ok {
		return ctx, nil, ErrSweepInProgress
	}

	lockCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.renew(lockCtx, token, done, cancel)
	}()

	return lockCtx, func() {
		close(done)
		<-stopped
		cancel(nil)
		if err := releaseLockScript.Run(context.WithoutCancel(ctx), s.redis, []string{s.cfg.LockKey}, token).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release sweep lock")
		}
	}, nil
}

func (s *regradeService) renew(ctx context.Context, token string, done <-chan struct{}, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(s.cfg.LockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			extended, err := extendLockScript.Run(ctx, s.redis, []string{s.cfg.LockKey}, token, s.cfg.LockTTL.Milliseconds()).Int()
			if err != nil {
				s.logger.Warn().Err(err).Msg("failed to extend sweep lock")
				continue
			}
			if extended == 0 {
				s.logger.Error().Str("lock_key", s.cfg.LockKey).Msg("sweep lock lost, stopping sweep")
				cancel(ErrSweepLockLost)
				return
			}
		}
	}
}

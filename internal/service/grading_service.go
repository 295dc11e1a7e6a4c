package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/grading"
	"github.com/noah-isme/gema-exam-grader/internal/models"
	"github.com/noah-isme/gema-exam-grader/internal/observability"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
)

// DefaultStaleAfter is how long a processing submission may go untouched before it is reclaimable.
const DefaultStaleAfter = 10 * time.Minute

var (
	// ErrExamSubmissionNotFound indicates the exam submission was not located.
	ErrExamSubmissionNotFound = errors.New("exam submission not found")
	// ErrGradingFailed indicates a grading run ended with the submission marked failed.
	ErrGradingFailed = errors.New("submission grading failed")
	// ErrGradingState groups errors raised when a submission is not in a gradable state.
	ErrGradingState = errors.New("submission not in a gradable state")
	// ErrSubmissionAlreadyGraded indicates the submission already carries a final grade.
	ErrSubmissionAlreadyGraded = fmt.Errorf("%w: already graded", ErrGradingState)
	// ErrGradingInProgress indicates another run currently holds the submission.
	ErrGradingInProgress = fmt.Errorf("%w: grading in progress", ErrGradingState)
)

// GradingService drives the end-to-end grading of one exam submission.
type GradingService interface {
	GradeSubmission(ctx context.Context, submissionID uint) (dto.GradingOutcome, error)
}

type gradingService struct {
	submissions repository.ExamSubmissionRepository
	exams       repository.ExamRepository
	engine      *grading.Engine
	notifier    GradeNotifier
	staleAfter  time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingService constructs the grading orchestrator. A nil notifier disables hand-off.
func NewGradingService(submissions repository.ExamSubmissionRepository, exams repository.ExamRepository, engine *grading.Engine, notifier GradeNotifier, staleAfter time.Duration, logger zerolog.Logger) GradingService {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &gradingService{
		submissions: submissions,
		exams:       exams,
		engine:      engine,
		notifier:    notifier,
		staleAfter:  staleAfter,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-exam-grader/internal/service/grading"),
		now:         time.Now,
	}
}

func (s *gradingService) GradeSubmission(ctx context.Context, submissionID uint) (dto.GradingOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "grading.submission", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
	))
	defer span.End()

	started := s.now()
	outcome := dto.GradingOutcome{SubmissionID: submissionID}

	submission, claimed, err := s.submissions.Claim(ctx, submissionID, started.Add(-s.staleAfter))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return outcome, ErrExamSubmissionNotFound
		}
		span.SetStatus(codes.Error, "claim_failed")
		return outcome, fmt.Errorf("claim submission: %w", err)
	}

	outcome.Status = string(submission.GradingStatus)
	outcome.Attempt = submission.GradingAttempts
	if !claimed {
		stateErr := ErrGradingInProgress
		if submission.IsGraded() {
			stateErr = ErrSubmissionAlreadyGraded
		}
		observability.GradingOutcomes().WithLabelValues("skipped").Inc()
		span.SetAttributes(attribute.String("grading.skipped", stateErr.Error()))
		return outcome, stateErr
	}

	log := s.logger.With().Uint("submission_id", submissionID).Int("attempt", submission.GradingAttempts).Logger()
	span.SetAttributes(attribute.Int("grading.attempt", submission.GradingAttempts))

	questions, err := s.exams.GetQuestions(ctx, submission.ExamID)
	if err != nil {
		return s.fail(ctx, span, log, outcome, fmt.Sprintf("load question set: %v", err))
	}
	if len(questions) == 0 {
		return s.fail(ctx, span, log, outcome, "exam has no questions")
	}

	summary, err := s.engine.GradeAnswers(ctx, questions, submission.Exam.Language, submission.Answers)
	if err != nil {
		return s.fail(ctx, span, log, outcome, err.Error())
	}
	for _, failure := range summary.Failures {
		log.Warn().Err(failure.Err).Uint("question_id", failure.QuestionID).Msg("question graded with error")
	}

	err = s.submissions.Commit(ctx, submissionID, submission.GradingAttempts, repository.GradeCommit{
		TotalScore: summary.TotalScore,
		MaxScore:   summary.MaxScore,
		Details:    summary.Details,
	})
	if errors.Is(err, repository.ErrStaleSubmission) {
		log.Warn().Msg("grading claim lost before commit")
		observability.GradingOutcomes().WithLabelValues("skipped").Inc()
		span.SetStatus(codes.Error, "claim_lost")
		return outcome, ErrGradingInProgress
	}
	if err != nil {
		return s.fail(ctx, span, log, outcome, fmt.Sprintf("commit grade: %v", err))
	}

	gradedAt := s.now().UTC()
	outcome.Status = string(models.GradingStatusGraded)
	outcome.TotalScore = summary.TotalScore
	outcome.MaxScore = summary.MaxScore
	outcome.Failures = len(summary.Failures)
	outcome.GradedAt = &gradedAt

	observability.GradingOutcomes().WithLabelValues("graded").Inc()
	observability.GradingDuration().Observe(s.now().Sub(started).Seconds())
	span.SetAttributes(
		attribute.Int("grading.total_score", summary.TotalScore),
		attribute.Int("grading.max_score", summary.MaxScore),
		attribute.Int("grading.question_failures", len(summary.Failures)),
	)
	log.Info().Int("total_score", summary.TotalScore).Int("max_score", summary.MaxScore).Msg("submission graded")

	s.notify(ctx, log, submission, summary, gradedAt)
	return outcome, nil
}

// fail records the submission as failed. The write is best effort and survives caller cancellation.
func (s *gradingService) fail(ctx context.Context, span trace.Span, log zerolog.Logger, outcome dto.GradingOutcome, reason string) (dto.GradingOutcome, error) {
	err := fmt.Errorf("%w: %s", ErrGradingFailed, reason)
	span.RecordError(err)
	span.SetStatus(codes.Error, "grading_failed")
	observability.GradingOutcomes().WithLabelValues("failed").Inc()

	if markErr := s.submissions.MarkFailed(context.WithoutCancel(ctx), outcome.SubmissionID, outcome.Attempt, reason); markErr != nil {
		log.Error().Err(markErr).Str("reason", reason).Msg("failed to mark submission failed")
	} else {
		log.Warn().Str("reason", reason).Msg("submission grading failed")
	}

	outcome.Status = string(models.GradingStatusFailed)
	outcome.Reason = reason
	return outcome, err
}

func (s *gradingService) notify(ctx context.Context, log zerolog.Logger, submission models.ExamSubmission, summary grading.Summary, gradedAt time.Time) {
	if s.notifier == nil {
		return
	}

	notification := dto.GradeNotification{
		SubmissionID: submission.ID,
		ExamID:       submission.ExamID,
		ExamTitle:    submission.Exam.Title,
		StudentID:    submission.StudentID,
		StudentName:  submission.Student.Name,
		StudentEmail: submission.Student.Email,
		TotalScore:   summary.TotalScore,
		MaxScore:     summary.MaxScore,
		Details:      make(map[string]dto.QuestionGradeResponse, len(summary.Details)),
		GradedAt:     gradedAt,
	}
	for key, grade := range summary.Details {
		notification.Details[key] = dto.QuestionGradeResponse{
			Score:    grade.Score,
			MaxScore: grade.MaxScore,
			Feedback: grade.Feedback,
		}
	}

	if err := ValidateGradeNotification(notification); err != nil {
		log.Error().Err(err).Msg("grade notification withheld")
		return
	}
	if err := s.notifier.NotifyGraded(ctx, notification); err != nil {
		log.Warn().Err(err).Msg("grade notification failed")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/models"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
)

var (
	// ErrScoreExceedsMax indicates an override score above the question's marks.
	ErrScoreExceedsMax = errors.New("score exceeds question max")
	// ErrQuestionNotGraded indicates the question has no entry in the submission's grade details.
	ErrQuestionNotGraded = errors.New("question not part of the graded submission")
	// ErrSubmissionNotGraded indicates an override on a submission without a final grade.
	ErrSubmissionNotGraded = fmt.Errorf("%w: not graded", ErrGradingState)
)

// AdminGradingService encapsulates grading workflows for administrators and teachers.
type AdminGradingService interface {
	Override(ctx context.Context, submissionID uint, payload dto.AdminGradeOverrideRequest, actor Actor) (dto.ExamSubmissionResponse, error)
	Regrade(ctx context.Context, submissionID uint, actor Actor) (dto.GradingOutcome, error)
}

type adminGradingService struct {
	repo      repository.ExamSubmissionRepository
	grading   GradingService
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewAdminGradingService constructs the admin grading service.
func NewAdminGradingService(repo repository.ExamSubmissionRepository, grading GradingService, validate *validator.Validate, logger zerolog.Logger) AdminGradingService {
	return &adminGradingService{
		repo:      repo,
		grading:   grading,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "admin_grading_service").Logger(),
	}
}

func (s *adminGradingService) Override(ctx context.Context, submissionID uint, payload dto.AdminGradeOverrideRequest, actor Actor) (dto.ExamSubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-exam-grader/internal/service/admin_grading")
	ctx, span := tracer.Start(ctx, "grading.override")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ExamSubmissionResponse{}, err
	}

	submission, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.ExamSubmissionResponse{}, ErrExamSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.ExamSubmissionResponse{}, err
	}
	if !submission.IsGraded() {
		span.SetStatus(codes.Error, "submission_not_graded")
		return dto.ExamSubmissionResponse{}, ErrSubmissionNotGraded
	}

	details := submission.Details()
	key := models.Question{ID: payload.QuestionID}.Key()
	current, ok := details[key]
	if !ok {
		span.SetStatus(codes.Error, "question_not_graded")
		return dto.ExamSubmissionResponse{}, ErrQuestionNotGraded
	}

	score := *payload.Score
	if score > current.MaxScore {
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.ExamSubmissionResponse{}, ErrScoreExceedsMax
	}

	feedback := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))
	if feedback == "" {
		feedback = current.Feedback
	}
	if current.Score == score && current.Feedback == feedback {
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		return dto.NewExamSubmissionResponse(submission, true), nil
	}

	details[key] = models.QuestionGrade{Score: score, MaxScore: current.MaxScore, Feedback: feedback}
	override := models.GradeOverride{
		SubmissionID:  submission.ID,
		QuestionKey:   key,
		PreviousScore: current.Score,
		Score:         score,
		Feedback:      feedback,
		OverriddenBy:  actor.ID,
	}
	if err := s.repo.SaveOverride(ctx, submission.ID, details, &override); err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrStaleSubmission) {
			span.SetStatus(codes.Error, "submission_not_graded")
			return dto.ExamSubmissionResponse{}, ErrSubmissionNotGraded
		}
		span.SetStatus(codes.Error, "override_failed")
		return dto.ExamSubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("question", key).
		Int("previous_score", current.Score).
		Int("score", score).
		Uint("actor_id", actor.ID).
		Msg("grade overridden")

	updated, err := s.repo.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.ExamSubmissionResponse{}, err
	}
	span.SetAttributes(attribute.Int("grading.total_score", details.Total()))
	return dto.NewExamSubmissionResponse(updated, true), nil
}

func (s *adminGradingService) Regrade(ctx context.Context, submissionID uint, actor Actor) (dto.GradingOutcome, error) {
	s.logger.Info().Uint("submission_id", submissionID).Uint("actor_id", actor.ID).Msg("manual regrade requested")
	return s.grading.GradeSubmission(ctx, submissionID)
}

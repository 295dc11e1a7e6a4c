package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/models"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
)

// ErrSubmissionForbidden indicates a student tried to view someone else's submission.
var ErrSubmissionForbidden = errors.New("submission belongs to another student")

// ExamSubmissionService accepts exam answers and exposes grading results.
type ExamSubmissionService interface {
	Submit(ctx context.Context, examID uint, actor Actor, payload dto.ExamSubmissionRequest) (dto.ExamSubmissionResponse, error)
	Get(ctx context.Context, id uint, actor Actor) (dto.ExamSubmissionResponse, error)
}

type examSubmissionService struct {
	exams       repository.ExamRepository
	submissions repository.ExamSubmissionRepository
	grading     GradingService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewExamSubmissionService constructs the submission service.
func NewExamSubmissionService(exams repository.ExamRepository, submissions repository.ExamSubmissionRepository, grading GradingService, validate *validator.Validate, logger zerolog.Logger) ExamSubmissionService {
	return &examSubmissionService{
		exams:       exams,
		submissions: submissions,
		grading:     grading,
		validator:   validate,
		logger:      logger.With().Str("component", "exam_submission_service").Logger(),
	}
}

// Submit stores the answers and grades them synchronously. A grading failure leaves the
// submission for the regrade sweeper and does not fail the submit itself.
func (s *examSubmissionService) Submit(ctx context.Context, examID uint, actor Actor, payload dto.ExamSubmissionRequest) (dto.ExamSubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}

	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamSubmissionResponse{}, ErrExamNotFound
		}
		return dto.ExamSubmissionResponse{}, err
	}

	submission := models.ExamSubmission{
		ExamID:           examID,
		StudentID:        actor.ID,
		Answers:          datatypes.JSONMap(payload.Answers),
		TimeTakenSeconds: payload.TimeTakenSeconds,
		GradingStatus:    models.GradingStatusUngraded,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}

	if _, err := s.grading.GradeSubmission(ctx, submission.ID); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("grading deferred")
	}

	stored, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.ExamSubmissionResponse{}, err
	}
	return dto.NewExamSubmissionResponse(stored, actor.IsStaff()), nil
}

func (s *examSubmissionService) Get(ctx context.Context, id uint, actor Actor) (dto.ExamSubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamSubmissionResponse{}, ErrExamSubmissionNotFound
		}
		return dto.ExamSubmissionResponse{}, err
	}

	staff := actor.IsStaff()
	if !staff && submission.StudentID != actor.ID {
		return dto.ExamSubmissionResponse{}, ErrSubmissionForbidden
	}
	return dto.NewExamSubmissionResponse(submission, staff), nil
}

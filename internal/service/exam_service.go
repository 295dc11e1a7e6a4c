package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/models"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
)

var (
	// ErrExamNotFound indicates the exam was not located.
	ErrExamNotFound = errors.New("exam not found")
	// ErrInvalidExam indicates an exam definition that cannot be graded.
	ErrInvalidExam = errors.New("invalid exam definition")
)

// ExamService manages exams and their question sets.
type ExamService interface {
	Create(ctx context.Context, payload dto.ExamCreateRequest) (dto.ExamResponse, error)
	Get(ctx context.Context, id uint) (dto.ExamResponse, error)
}

type examService struct {
	repo      repository.ExamRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewExamService constructs the exam service.
func NewExamService(repo repository.ExamRepository, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return &examService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "exam_service").Logger(),
	}
}

func (s *examService) Create(ctx context.Context, payload dto.ExamCreateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	language := strings.ToLower(strings.TrimSpace(payload.Language))
	if language == "" {
		language = models.DefaultExamLanguage
	}

	exam := models.Exam{
		Title:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Language:    language,
		Questions:   make([]models.Question, 0, len(payload.Questions)),
	}

	for i, q := range payload.Questions {
		questionType := models.QuestionType(q.Type)
		if !questionType.Valid() {
			return dto.ExamResponse{}, fmt.Errorf("%w: question %d has unsupported type %q", ErrInvalidExam, i+1, q.Type)
		}

		var correct *string
		if questionType == models.QuestionTypeMultipleChoice {
			if q.CorrectAnswer == nil || strings.TrimSpace(*q.CorrectAnswer) == "" {
				return dto.ExamResponse{}, fmt.Errorf("%w: question %d needs a correct answer", ErrInvalidExam, i+1)
			}
			value := strings.TrimSpace(*q.CorrectAnswer)
			correct = &value
		}

		position := q.Position
		if position == 0 {
			position = i + 1
		}

		exam.Questions = append(exam.Questions, models.Question{
			Position:      position,
			Type:          questionType,
			Prompt:        strings.TrimSpace(q.Prompt),
			CorrectAnswer: correct,
			Marks:         q.Marks,
			SampleCode:    q.SampleCode,
			Language:      strings.ToLower(strings.TrimSpace(q.Language)),
		})
	}

	if err := s.repo.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Int("questions", len(exam.Questions)).Msg("exam created")
	return dto.NewExamResponse(exam), nil
}

func (s *examService) Get(ctx context.Context, id uint) (dto.ExamResponse, error) {
	exam, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam), nil
}

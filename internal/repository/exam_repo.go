package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-grader/internal/models"
)

// ExamRepository exposes persistence helpers for exams and their question sets.
type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (models.Exam, error)
	GetQuestions(ctx context.Context, examID uint) ([]models.Question, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository constructs an exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) Create(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Create(exam).Error
}

func (r *examRepository) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	err := r.db.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC, id ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (r *examRepository) GetQuestions(ctx context.Context, examID uint) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("position ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-grader/internal/models"
)

// StudentRepository provides access to student contact details.
type StudentRepository interface {
	GetContact(ctx context.Context, id uint) (models.Student, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetContact(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Select("id", "name", "email").
		First(&student, id).Error
	if err != nil {
		return models.Student{}, err
	}
	return student, nil
}

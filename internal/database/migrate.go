package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-grader/internal/models"
)

// Migrate creates or updates the grading schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Student{},
		&models.Exam{},
		&models.Question{},
		&models.ExamSubmission{},
		&models.GradeOverride{},
	)
}

package models

import "time"

// Student is the learner that sits exams and receives grade notifications.
type Student struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Name        string           `gorm:"size:255;not null" json:"name"`
	Email       string           `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Submissions []ExamSubmission `json:"-"`
}

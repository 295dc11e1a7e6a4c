package models

import "time"

// GradeOverride records an administrator's manual change to one question's grade.
type GradeOverride struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubmissionID  uint      `gorm:"not null;index" json:"submission_id"`
	QuestionKey   string    `gorm:"size:32;not null" json:"question_key"`
	PreviousScore int       `gorm:"not null" json:"previous_score"`
	Score         int       `gorm:"not null" json:"score"`
	Feedback      string    `gorm:"type:text" json:"feedback"`
	OverriddenBy  uint      `gorm:"not null" json:"overridden_by"`
	CreatedAt     time.Time `json:"created_at"`
}

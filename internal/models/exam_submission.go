package models

import (
	"time"

	"gorm.io/datatypes"
)

// GradingStatus tracks where a submission is in the grading state machine.
type GradingStatus string

const (
	GradingStatusUngraded   GradingStatus = "ungraded"
	GradingStatusProcessing GradingStatus = "processing"
	GradingStatusGraded     GradingStatus = "graded"
	GradingStatusFailed     GradingStatus = "failed"
)

// RegradeStatuses are the states the sweeper picks up. Graded is terminal.
var RegradeStatuses = []GradingStatus{
	GradingStatusUngraded,
	GradingStatusProcessing,
	GradingStatusFailed,
}

// QuestionGrade is the persisted score for one question of a submission.
type QuestionGrade struct {
	Score    int    `json:"score"`
	MaxScore int    `json:"max_score"`
	Feedback string `json:"feedback"`
}

// GradeDetails maps question keys to their grades.
type GradeDetails map[string]QuestionGrade

// Total sums the awarded scores.
func (d GradeDetails) Total() int {
	total := 0
	for _, grade := range d {
		total += grade.Score
	}
	return total
}

// ExamSubmission is one learner attempt at an exam.
type ExamSubmission struct {
	ID               uint                             `gorm:"primaryKey" json:"id"`
	ExamID           uint                             `gorm:"not null;index" json:"exam_id"`
	StudentID        uint                             `gorm:"not null;index" json:"student_id"`
	Answers          datatypes.JSONMap                `json:"answers"`
	TimeTakenSeconds int                              `gorm:"default:0" json:"time_taken_seconds"`
	GradingStatus    GradingStatus                    `gorm:"size:32;not null;index" json:"grading_status"`
	TotalScore       *int                             `json:"total_score"`
	MaxScore         *int                             `json:"max_score"`
	GradeDetails     datatypes.JSONType[GradeDetails] `json:"grade_details"`
	GradingError     string                           `gorm:"type:text" json:"grading_error"`
	GradingAttempts  int                              `gorm:"not null;default:0" json:"grading_attempts"`
	SubmittedAt      time.Time                        `gorm:"not null" json:"submitted_at"`
	GradedAt         *time.Time                       `json:"graded_at"`
	CreatedAt        time.Time                        `json:"created_at"`
	UpdatedAt        time.Time                        `json:"updated_at"`
	Exam             Exam                             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exam"`
	Student          Student                          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsGraded reports whether the submission has a committed final grade.
func (s ExamSubmission) IsGraded() bool {
	return s.GradingStatus == GradingStatusGraded
}

// Details returns the decoded grade details, never nil.
func (s ExamSubmission) Details() GradeDetails {
	details := s.GradeDetails.Data()
	if details == nil {
		return GradeDetails{}
	}
	return details
}

package dto

import "time"

// GradingOutcome summarises one grading run.
type GradingOutcome struct {
	SubmissionID uint       `json:"submission_id"`
	Status       string     `json:"status"`
	TotalScore   int        `json:"total_score"`
	MaxScore     int        `json:"max_score"`
	Attempt      int        `json:"attempt"`
	Failures     int        `json:"question_failures"`
	Reason       string     `json:"reason,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
}

// RegradeFailure names a submission the sweeper could not grade.
type RegradeFailure struct {
	SubmissionID uint   `json:"submission_id"`
	Reason       string `json:"reason"`
}

// RegradeReport aggregates a sweep over stuck submissions.
type RegradeReport struct {
	Success  int              `json:"success"`
	Failed   int              `json:"failed"`
	Skipped  int              `json:"skipped"`
	Total    int              `json:"total"`
	Failures []RegradeFailure `json:"failures"`
}

// AdminGradeOverrideRequest captures a manual change to one question's grade.
type AdminGradeOverrideRequest struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	Score      *int   `json:"score" validate:"required,gte=0"`
	Feedback   string `json:"feedback" validate:"omitempty,max=5000"`
}

// GradeNotification is the payload handed to notifiers once a submission is graded.
type GradeNotification struct {
	SubmissionID uint                             `json:"submission_id"`
	ExamID       uint                             `json:"exam_id"`
	ExamTitle    string                           `json:"exam_title"`
	StudentID    uint                             `json:"student_id"`
	StudentName  string                           `json:"student_name"`
	StudentEmail string                           `json:"student_email"`
	TotalScore   int                              `json:"total_score"`
	MaxScore     int                              `json:"max_score"`
	Details      map[string]QuestionGradeResponse `json:"details"`
	GradedAt     time.Time                        `json:"graded_at"`
}

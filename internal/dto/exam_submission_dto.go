package dto

import (
	"time"

	"github.com/noah-isme/gema-exam-grader/internal/models"
)

// GradingInProgressMessage replaces scores for students until grading completes.
const GradingInProgressMessage = "Grading in progress"

// ExamSubmissionRequest captures a student's answers for an exam.
type ExamSubmissionRequest struct {
	Answers          map[string]interface{} `json:"answers" validate:"required"`
	TimeTakenSeconds int                    `json:"time_taken_seconds" validate:"gte=0"`
}

// QuestionGradeResponse serializes the grade of one question.
type QuestionGradeResponse struct {
	Score    int    `json:"score"`
	MaxScore int    `json:"max_score"`
	Feedback string `json:"feedback"`
}

// ExamSubmissionResponse is returned when viewing an exam submission.
type ExamSubmissionResponse struct {
	ID               uint                             `json:"id"`
	ExamID           uint                             `json:"exam_id"`
	StudentID        uint                             `json:"student_id"`
	Answers          map[string]interface{}           `json:"answers"`
	TimeTakenSeconds int                              `json:"time_taken_seconds"`
	GradingStatus    string                           `json:"grading_status"`
	Message          string                           `json:"message,omitempty"`
	TotalScore       *int                             `json:"total_score,omitempty"`
	MaxScore         *int                             `json:"max_score,omitempty"`
	GradeDetails     map[string]QuestionGradeResponse `json:"grade_details,omitempty"`
	GradingError     string                           `json:"grading_error,omitempty"`
	GradingAttempts  int                              `json:"grading_attempts,omitempty"`
	SubmittedAt      time.Time                        `json:"submitted_at"`
	GradedAt         *time.Time                       `json:"graded_at,omitempty"`
}

// NewExamSubmissionResponse converts a submission for the given audience. Scores are only
// exposed once graded; grading diagnostics are only exposed to staff.
func NewExamSubmissionResponse(model models.ExamSubmission, staff bool) ExamSubmissionResponse {
	response := ExamSubmissionResponse{
		ID:               model.ID,
		ExamID:           model.ExamID,
		StudentID:        model.StudentID,
		Answers:          map[string]interface{}(model.Answers),
		TimeTakenSeconds: model.TimeTakenSeconds,
		GradingStatus:    string(model.GradingStatus),
		SubmittedAt:      model.SubmittedAt,
	}
	if response.Answers == nil {
		response.Answers = map[string]interface{}{}
	}

	if staff {
		response.GradingError = model.GradingError
		response.GradingAttempts = model.GradingAttempts
	}

	if !model.IsGraded() {
		response.Message = GradingInProgressMessage
		return response
	}

	response.TotalScore = model.TotalScore
	response.MaxScore = model.MaxScore
	response.GradedAt = model.GradedAt
	details := model.Details()
	response.GradeDetails = make(map[string]QuestionGradeResponse, len(details))
	for key, grade := range details {
		response.GradeDetails[key] = QuestionGradeResponse{
			Score:    grade.Score,
			MaxScore: grade.MaxScore,
			Feedback: grade.Feedback,
		}
	}
	return response
}
